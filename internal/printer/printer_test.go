package printer

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/cmd/output"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

func TestMigrationPrinter_ThroughTextHandler(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := output.NewTextHandler[repository.MigrationState](buf, NewMigrationPrinter())

	err := h.HandleResults(
		repository.MigrationState{Version: 1, Name: "001_mcp_servers.up.sql", Applied: true},
		repository.MigrationState{Version: 2, Name: "002_indexes.up.sql", Dirty: true},
		repository.MigrationState{Version: 3, Name: "003_owner.up.sql"},
	)
	require.NoError(t, err)

	expected := "VERSION  STATE    NAME\n" +
		"1        applied  001_mcp_servers.up.sql\n" +
		"2        dirty    002_indexes.up.sql\n" +
		"3        pending  003_owner.up.sql\n" +
		"\n3 migrations\n"
	require.Equal(t, expected, buf.String())
}

func TestMigrationPrinter_CustomHeaderFooter(t *testing.T) {
	t.Parallel()

	p := NewMigrationPrinter()
	p.SetHeader(nil)
	p.SetFooter(func(w io.Writer, count int) { _, _ = fmt.Fprintf(w, "done (%d)\n", count) })

	buf := &bytes.Buffer{}
	p.Header(buf, 1)
	require.NoError(t, p.Item(buf, repository.MigrationState{Version: 1, Name: "001_mcp_servers.up.sql"}))
	p.Footer(buf, 1)

	require.Equal(t, "1        pending  001_mcp_servers.up.sql\ndone (1)\n", buf.String())
}

func TestTokenPrinter(t *testing.T) {
	t.Parallel()

	expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token auth.IssuedToken
		want  string
	}{
		{
			name:  "with expiry",
			token: auth.IssuedToken{Token: "abc.def.ghi", Subject: "alice", ExpiresAt: &expires},
			want:  "Subject: alice\nExpires: 2026-05-01T10:00:00Z\n\nabc.def.ghi\n",
		},
		{
			name:  "without expiry",
			token: auth.IssuedToken{Token: "abc.def.ghi", Subject: "bob"},
			want:  "Subject: bob\nExpires: never\n\nabc.def.ghi\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			require.NoError(t, output.NewTextHandler[auth.IssuedToken](buf, &TokenPrinter{}).HandleResult(tc.token))
			require.Equal(t, tc.want, buf.String())
		})
	}
}
