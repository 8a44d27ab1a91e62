package printer

import (
	"fmt"
	"io"
	"time"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/cmd/output"
)

var _ output.Printer[auth.IssuedToken] = (*TokenPrinter)(nil)

// TokenPrinter prints a session token with its subject and expiry.
type TokenPrinter struct {
	headerFunc output.WriteFunc[auth.IssuedToken]
	footerFunc output.WriteFunc[auth.IssuedToken]
}

func (p *TokenPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *TokenPrinter) SetHeader(fn output.WriteFunc[auth.IssuedToken]) {
	p.headerFunc = fn
}

func (p *TokenPrinter) Item(w io.Writer, t auth.IssuedToken) error {
	expires := "never"
	if t.ExpiresAt != nil {
		expires = t.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := fmt.Fprintf(w, "Subject: %s\nExpires: %s\n\n%s\n", t.Subject, expires, t.Token)
	return err
}

func (p *TokenPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
	}
}

func (p *TokenPrinter) SetFooter(fn output.WriteFunc[auth.IssuedToken]) {
	p.footerFunc = fn
}
