// Package browser provides the page drivers the scraper runs against.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a selector matches nothing at the requested position.
	ErrNotFound = errors.New("browser: element not found")
	// ErrUnsupported is returned by drivers that cannot perform an interaction.
	ErrUnsupported = errors.New("browser: operation not supported")
	// ErrNoDocument is returned when a page is read before any navigation succeeded.
	ErrNoDocument = errors.New("browser: no document loaded")
)

// Cookie is a driver-neutral browser cookie.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
}

// Page is one tab the scraper drives. A Page is used by one goroutine at a time.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	HTML(ctx context.Context) (string, error)
	// InnerText returns the rendered text of the first match; found is false
	// when nothing matches.
	InnerText(ctx context.Context, selector string) (text string, found bool, err error)
	ClickNth(ctx context.Context, selector string, index int) error
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Opener hands out isolated pages.
type Opener interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
