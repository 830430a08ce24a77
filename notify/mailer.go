// Package notify delivers export attachments and failure notices over SMTP.
package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/aluiziolira/go-scrape-rentals/config"
	"github.com/aluiziolira/go-scrape-rentals/period"
)

// ErrNoRecipients is returned when there is nobody to notify.
var ErrNoRecipients = errors.New("notify: no recipients")

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

func defaultSend(e *email.Email, addr string, auth smtp.Auth) error {
	return e.Send(addr, auth)
}

// Mailer sends scrape reports.
type Mailer struct {
	addr     string
	host     string
	user     string
	password string
	from     string
	site     string
	loc      *time.Location

	send sendFunc
	now  func() time.Time
}

// NewMailer builds a mailer from the SMTP settings in cfg.
func NewMailer(cfg *config.Config) *Mailer {
	from := cfg.MailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &Mailer{
		addr:     cfg.SMTPAddr(),
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     from,
		site:     cfg.SiteName,
		loc:      cfg.Location(),
		send:     defaultSend,
		now:      time.Now,
	}
}

// SendReport mails the export at path as an attachment named name.
func (m *Mailer) SendReport(path, name string, recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	mail := m.newEmail(recipients, fmt.Sprintf("%s Data Scrape - %s", m.site, m.stamp()))
	mail.Text = []byte(fmt.Sprintf("Attached is the scraped %s data in excel format.", m.site))

	if name == "" {
		name = filepath.Base(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	attachment, err := mail.Attach(f, name, contentType(name))
	f.Close()
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}

	if err := m.deliver(mail); err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	slog.Info("report emailed",
		slog.String("file", attachment.Filename),
		slog.String("to", strings.Join(recipients, ",")),
	)
	return nil
}

// SendFailure mails the run's failure message.
func (m *Mailer) SendFailure(message string, recipients []string) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	mail := m.newEmail(recipients, fmt.Sprintf("Car Data Scrape Failed - %s", m.stamp()))
	mail.Text = []byte(fmt.Sprintf("Scraping failed with message: %s", message))

	if err := m.deliver(mail); err != nil {
		return fmt.Errorf("send failure notice: %w", err)
	}
	slog.Info("failure notice emailed", slog.String("to", strings.Join(recipients, ",")))
	return nil
}

func (m *Mailer) newEmail(recipients []string, subject string) *email.Email {
	mail := email.NewEmail()
	mail.From = m.from
	mail.To = append([]string(nil), recipients...)
	mail.Subject = subject
	return mail
}

// deliver sends with PLAIN auth and falls back to an unauthenticated send
// when the relay does not offer AUTH.
func (m *Mailer) deliver(mail *email.Email) error {
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}

	err := m.send(mail, m.addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, m.addr, nil)
	}
	return err
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (m *Mailer) stamp() string {
	return m.now().In(m.loc).Format(period.LabelLayout)
}
