// Package printer renders CLI results as text for the output.TextHandler.
package printer

import (
	"fmt"
	"io"

	"github.com/mozilla-ai/mcphub/internal/cmd/output"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

var _ output.Printer[repository.MigrationState] = (*MigrationPrinter)(nil)

// MigrationPrinter prints one line per schema migration.
type MigrationPrinter struct {
	headerFunc output.WriteFunc[repository.MigrationState]
	footerFunc output.WriteFunc[repository.MigrationState]
}

// NewMigrationPrinter returns a MigrationPrinter with a column header and a pending count footer.
func NewMigrationPrinter() *MigrationPrinter {
	return &MigrationPrinter{
		headerFunc: func(w io.Writer, _ int) {
			_, _ = fmt.Fprintf(w, "%-8s %-8s %s\n", "VERSION", "STATE", "NAME")
		},
		footerFunc: func(w io.Writer, count int) {
			_, _ = fmt.Fprintf(w, "\n%d migration%s\n", count, plural(count))
		},
	}
}

func (p *MigrationPrinter) Header(w io.Writer, count int) {
	if p.headerFunc != nil {
		p.headerFunc(w, count)
	}
}

func (p *MigrationPrinter) SetHeader(fn output.WriteFunc[repository.MigrationState]) {
	p.headerFunc = fn
}

func (p *MigrationPrinter) Item(w io.Writer, m repository.MigrationState) error {
	_, err := fmt.Fprintf(w, "%-8d %-8s %s\n", m.Version, migrationState(m), m.Name)
	return err
}

func (p *MigrationPrinter) Footer(w io.Writer, count int) {
	if p.footerFunc != nil {
		p.footerFunc(w, count)
	}
}

func (p *MigrationPrinter) SetFooter(fn output.WriteFunc[repository.MigrationState]) {
	p.footerFunc = fn
}

func migrationState(m repository.MigrationState) string {
	switch {
	case m.Dirty:
		return "dirty"
	case m.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
