package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files without overriding
// variables already present in the environment. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key when set and non-empty.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvList splits a comma separated value, dropping blanks.
func EnvList(key string) ([]string, bool) {
	raw, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	return SplitList(raw), true
}

// SplitList splits s on commas and trims every element.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ApplyEnv overrides cfg fields from SCRAPER_* and mail variables.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("SCRAPER_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok := EnvList("SCRAPER_VEHICLES"); ok {
		c.Vehicles = v
	}
	if v, ok := EnvList("SCRAPER_PERIODS"); ok {
		c.Kinds = v
	}
	if v, ok, err := EnvInt("SCRAPER_MONTHS"); err != nil {
		return err
	} else if ok {
		c.Months = v
	}
	if v, ok, err := EnvInt("SCRAPER_WORKERS"); err != nil {
		return err
	} else if ok {
		c.Workers = v
	}
	if v, ok, err := EnvDuration("SCRAPER_LEAD_TIME"); err != nil {
		return err
	} else if ok {
		c.LeadTime = v
	}
	if v, ok := EnvString("SCRAPER_TIMEZONE"); ok {
		c.Timezone = v
	}
	if v, ok := EnvString("SCRAPER_BROWSER"); ok {
		c.BrowserMode = strings.ToLower(v)
	}
	if v, ok := EnvString("SCRAPER_CHROME_PATH"); ok {
		c.ChromePath = v
	}
	if v, ok, err := EnvBool("SCRAPER_HEADLESS"); err != nil {
		return err
	} else if ok {
		c.Headless = v
	}
	if v, ok := EnvString("SCRAPER_OUTPUT_DIR"); ok {
		c.OutputDir = v
	}
	if v, ok := EnvString("SCRAPER_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(v)
	}
	if v, ok := EnvList("SCRAPER_SCHEDULES"); ok {
		c.Schedules = v
	}
	if v, ok := EnvString("SCRAPER_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}

	if v, ok := EnvString("SMTP_HOST"); ok {
		c.SMTPHost = v
	}
	if v, ok, err := EnvInt("SMTP_PORT"); err != nil {
		return err
	} else if ok {
		c.SMTPPort = v
	}
	if v, ok := EnvString("EMAIL_USER"); ok {
		c.SMTPUser = v
		if c.MailFrom == "" {
			c.MailFrom = v
		}
	}
	if v, ok := EnvString("EMAIL_PASS"); ok {
		c.SMTPPassword = v
	}
	if v, ok := EnvString("EMAIL_FROM"); ok {
		c.MailFrom = v
	}
	if v, ok := EnvList("RECIPIENT_EMAIL"); ok {
		c.Recipients = v
	}
	return nil
}
