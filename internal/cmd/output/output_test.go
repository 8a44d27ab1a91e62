package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type migrationRow struct {
	Version int64  `json:"version" yaml:"version"`
	Name    string `json:"name"    yaml:"name"`
}

// recordingPrinter writes a marker per call and fails on a chosen version.
type recordingPrinter struct {
	headerCount int
	footerCount int
	printed     []int64
	failOn      int64
}

func (p *recordingPrinter) Header(w io.Writer, count int) {
	p.headerCount = count
	_, _ = fmt.Fprintln(w, "VERSION NAME")
}

func (p *recordingPrinter) SetHeader(WriteFunc[migrationRow]) {}

func (p *recordingPrinter) Item(w io.Writer, row migrationRow) error {
	p.printed = append(p.printed, row.Version)
	if row.Version == p.failOn {
		return errors.New("item error")
	}
	_, err := fmt.Fprintf(w, "%d %s\n", row.Version, row.Name)
	return err
}

func (p *recordingPrinter) Footer(w io.Writer, count int) {
	p.footerCount = count
	_, _ = fmt.Fprintf(w, "%d applied\n", count)
}

func (p *recordingPrinter) SetFooter(WriteFunc[migrationRow]) {}

var rows = []migrationRow{{Version: 1, Name: "init"}, {Version: 2, Name: "visibility"}}

func TestHandlers_Writer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	require.Equal(t, buf, NewJSONHandler[migrationRow](buf, 2).Writer())
	require.Equal(t, buf, NewYAMLHandler[migrationRow](buf, 2).Writer())
	require.Equal(t, buf, NewTextHandler[migrationRow](buf, &recordingPrinter{}).Writer())
}

func TestJSONHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		indent int
		call   func(h Handler[migrationRow]) error
		want   string
	}{
		{
			name:   "results indented",
			indent: 2,
			call:   func(h Handler[migrationRow]) error { return h.HandleResults(rows...) },
			want: "{\n  \"results\": [\n    {\n      \"version\": 1,\n      \"name\": \"init\"\n    },\n" +
				"    {\n      \"version\": 2,\n      \"name\": \"visibility\"\n    }\n  ]\n}\n",
		},
		{
			name: "no results is null",
			call: func(h Handler[migrationRow]) error { return h.HandleResults() },
			want: `{"results":null}` + "\n",
		},
		{
			name: "single result",
			call: func(h Handler[migrationRow]) error { return h.HandleResult(rows[0]) },
			want: `{"result":{"version":1,"name":"init"}}` + "\n",
		},
		{
			name: "error",
			call: func(h Handler[migrationRow]) error { return h.HandleError(errors.New("database unreachable")) },
			want: `{"error":"database unreachable"}` + "\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			require.NoError(t, tc.call(NewJSONHandler[migrationRow](buf, tc.indent)))
			require.Equal(t, tc.want, buf.String())
		})
	}
}

func TestYAMLHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(h Handler[migrationRow]) error
		want string
	}{
		{
			name: "results",
			call: func(h Handler[migrationRow]) error { return h.HandleResults(rows...) },
			want: "results:\n  - version: 1\n    name: init\n  - version: 2\n    name: visibility\n",
		},
		{
			name: "single result",
			call: func(h Handler[migrationRow]) error { return h.HandleResult(rows[1]) },
			want: "result:\n  version: 2\n  name: visibility\n",
		},
		{
			name: "error",
			call: func(h Handler[migrationRow]) error { return h.HandleError(errors.New("boom")) },
			want: "error: boom\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			require.NoError(t, tc.call(NewYAMLHandler[migrationRow](buf, 2)))
			require.Equal(t, tc.want, buf.String())
		})
	}
}

func TestTextHandler_HandleResults(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	p := &recordingPrinter{}
	require.NoError(t, NewTextHandler[migrationRow](buf, p).HandleResults(rows...))

	require.Equal(t, 2, p.headerCount)
	require.Equal(t, 2, p.footerCount)
	require.Equal(t, "VERSION NAME\n1 init\n2 visibility\n2 applied\n", buf.String())
}

func TestTextHandler_HandleResults_Empty(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	p := &recordingPrinter{}
	require.NoError(t, NewTextHandler[migrationRow](buf, p).HandleResults())

	require.Zero(t, p.headerCount)
	require.Equal(t, "No items found\n", buf.String())
}

func TestTextHandler_ItemErrorStopsOutput(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	p := &recordingPrinter{failOn: 1}
	err := NewTextHandler[migrationRow](buf, p).HandleResults(rows...)

	require.EqualError(t, err, "item error")
	require.Equal(t, []int64{1}, p.printed)
	require.Zero(t, p.footerCount)
}

func TestTextHandler_HandleResultAndError(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	h := NewTextHandler[migrationRow](buf, &recordingPrinter{})

	require.NoError(t, h.HandleResult(rows[0]))
	require.Equal(t, "1 init\n", buf.String())
	require.EqualError(t, h.HandleError(errors.New("failed")), "failed")
}
