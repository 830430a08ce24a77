package notify

import (
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jordan-wright/email"

	"github.com/aluiziolira/go-scrape-rentals/config"
)

type sent struct {
	mail *email.Email
	addr string
	auth smtp.Auth
}

func newTestMailer(t *testing.T, errs ...error) (*Mailer, *[]sent) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.SMTPHost = "smtp.example.test"
	cfg.SMTPPort = 2525
	cfg.SMTPUser = "bot@example.test"
	cfg.SMTPPassword = "secret"
	cfg.Timezone = "UTC"

	m := NewMailer(cfg)
	m.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }

	var calls []sent
	m.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		calls = append(calls, sent{mail: e, addr: addr, auth: auth})
		if len(errs) >= len(calls) {
			return errs[len(calls)-1]
		}
		return nil
	}
	return m, &calls
}

func TestSendReport(t *testing.T) {
	m, calls := newTestMailer(t)

	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write attachment: %v", err)
	}

	recipients := []string{"a@example.test", "b@example.test"}
	if err := m.SendReport(path, "car_data_all_cars.xlsx", recipients); err != nil {
		t.Fatalf("send report: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("send calls = %d, want 1", len(*calls))
	}

	got := (*calls)[0]
	if got.addr != "smtp.example.test:2525" {
		t.Fatalf("addr = %q", got.addr)
	}
	if got.auth == nil {
		t.Fatalf("expected PLAIN auth")
	}
	if got.mail.Subject != "Yango Drive Data Scrape - 3/5/2024, 2:07:09 PM" {
		t.Fatalf("subject = %q", got.mail.Subject)
	}
	if got.mail.From != "bot@example.test" {
		t.Fatalf("from = %q", got.mail.From)
	}
	if strings.Join(got.mail.To, ",") != "a@example.test,b@example.test" {
		t.Fatalf("to = %v", got.mail.To)
	}
	if len(got.mail.Attachments) != 1 || got.mail.Attachments[0].Filename != "car_data_all_cars.xlsx" {
		t.Fatalf("attachments = %+v", got.mail.Attachments)
	}
}

func TestSendReportMissingFile(t *testing.T) {
	m, calls := newTestMailer(t)
	if err := m.SendReport(filepath.Join(t.TempDir(), "missing.xlsx"), "x.xlsx", []string{"a@example.test"}); err == nil {
		t.Fatalf("expected attach error")
	}
	if len(*calls) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestSendFailure(t *testing.T) {
	m, calls := newTestMailer(t)
	if err := m.SendFailure("Check car name on Yango Drive website", []string{"ops@example.test"}); err != nil {
		t.Fatalf("send failure: %v", err)
	}
	mail := (*calls)[0].mail
	if !strings.HasPrefix(mail.Subject, "Car Data Scrape Failed - ") {
		t.Fatalf("subject = %q", mail.Subject)
	}
	if string(mail.Text) != "Scraping failed with message: Check car name on Yango Drive website" {
		t.Fatalf("body = %q", mail.Text)
	}
}

func TestSendRetriesWithoutAuth(t *testing.T) {
	m, calls := newTestMailer(t, errors.New("smtp: server doesn't support AUTH"))
	if err := m.SendFailure("boom", []string{"ops@example.test"}); err != nil {
		t.Fatalf("send failure: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("send calls = %d, want 2", len(*calls))
	}
	if (*calls)[1].auth != nil {
		t.Fatalf("retry should not authenticate")
	}
}

func TestSendErrorReturned(t *testing.T) {
	m, calls := newTestMailer(t, errors.New("dial tcp: connection refused"))
	err := m.SendFailure("boom", []string{"ops@example.test"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("err = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("send calls = %d, want 1", len(*calls))
	}
}

func TestNoRecipients(t *testing.T) {
	m, _ := newTestMailer(t)
	if err := m.SendFailure("boom", nil); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
}
