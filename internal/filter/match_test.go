package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	Name     string
	Category string
}

func TestNormalizeString(t *testing.T) {
	assert.Equal(t, "hello", NormalizeString("  Hello "))
	assert.Equal(t, "world", NormalizeString("WORLD"))
	assert.Equal(t, "", NormalizeString("  "))
}

func TestEquals(t *testing.T) {
	p := Equals(func(m testItem) string { return m.Name })
	assert.True(t, p(testItem{Name: "ToolA"}, "toola"))
	assert.False(t, p(testItem{Name: "ToolB"}, "toola"))
}

func TestPartial(t *testing.T) {
	p := Partial(func(m testItem) string { return m.Category })
	assert.True(t, p(testItem{Category: "devtools"}, "tool"))
	assert.False(t, p(testItem{Category: "runtime"}, "tool"))
}

func TestMatch(t *testing.T) {
	t.Parallel()

	opts := []Option[testItem]{
		WithMatcher("name", Partial(func(m testItem) string { return m.Name })),
		WithMatcher("category", Equals(func(m testItem) string { return m.Category })),
		WithUnsupportedKeys[testItem]("owner"),
	}
	item := testItem{Name: "time-server", Category: "utility"}

	tests := []struct {
		name    string
		filters map[string]string
		want    bool
	}{
		{name: "nil filters", filters: nil, want: true},
		{name: "partial name", filters: map[string]string{"name": "TIME"}, want: true},
		{name: "both match", filters: map[string]string{"name": "time", "category": "Utility"}, want: true},
		{name: "category mismatch", filters: map[string]string{"category": "search"}, want: false},
		{name: "unknown key ignored", filters: map[string]string{"color": "blue"}, want: true},
		{name: "empty value ignored", filters: map[string]string{"category": "  "}, want: true},
		{name: "unsupported key", filters: map[string]string{"owner": "me"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Match(item, tc.filters, opts...)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMatch_LogsUnsupportedKeys(t *testing.T) {
	t.Parallel()

	var logged []string
	ok, err := Match(
		testItem{},
		map[string]string{"Owner": "me"},
		WithUnsupportedKeys[testItem]("owner"),
		WithLogFunc[testItem](func(key, val string) { logged = append(logged, key+"="+val) }),
	)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"owner=me"}, logged)
}
