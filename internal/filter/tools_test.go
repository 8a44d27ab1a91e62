package filter

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

func tool(serverID, serverName, name string) domain.ToolHandle {
	return domain.ToolHandle{ServerID: serverID, ServerName: serverName, ToolName: name}
}

func toolMap(tools ...domain.ToolHandle) map[string]domain.ToolHandle {
	m := make(map[string]domain.ToolHandle, len(tools))
	for _, t := range tools {
		m[t.Key()] = t
	}
	return m
}

func ids(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

func keys(m map[string]domain.ToolHandle) []string {
	return append([]string{}, slices.Sorted(maps.Keys(m))...)
}

func TestSelectTools(t *testing.T) {
	t.Parallel()

	available := toolMap(
		tool("S1", "s1", "A"),
		tool("S1", "s1", "C"),
		tool("S2", "search", "B"),
	)

	tests := []struct {
		name string
		opts ToolSelectOptions
		want []string
	}{
		{
			name: "no mentions and no allow-list",
			opts: ToolSelectOptions{AccessibleServerIDs: ids("S1")},
			want: []string{},
		},
		{
			name: "no accessible servers",
			opts: ToolSelectOptions{
				Mentions:       []domain.Mention{{Type: domain.MentionTypeServer, ServerID: "S1"}},
				AllowedServers: domain.AllowList{"S1": {Tools: []string{"A"}}},
			},
			want: []string{},
		},
		{
			name: "mention by id and lowercase name",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1"),
				Mentions:            []domain.Mention{{Type: domain.MentionTypeServer, Name: "s1", ServerID: "S1"}},
			},
			want: []string{"S1:A", "S1:C"},
		},
		{
			name: "mention by case-insensitive name only",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1", "S2"),
				Mentions:            []domain.Mention{{Type: domain.MentionTypeServer, Name: "SEARCH"}},
			},
			want: []string{"S2:B"},
		},
		{
			name: "mention of inaccessible server never widens",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1"),
				Mentions:            []domain.Mention{{Type: domain.MentionTypeServer, ServerID: "S2"}},
			},
			want: []string{},
		},
		{
			name: "tool mention",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1", "S2"),
				Mentions:            []domain.Mention{{Type: domain.MentionTypeTool, Name: "c", ServerID: "S1"}},
			},
			want: []string{"S1:C"},
		},
		{
			name: "allow-list restricts listed server and excludes unlisted",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1", "S2"),
				AllowedServers:      domain.AllowList{"S1": {Tools: []string{"A"}}},
			},
			want: []string{"S1:A"},
		},
		{
			name: "allow-list cannot widen past accessible servers",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1"),
				AllowedServers:      domain.AllowList{"S2": {Tools: []string{"B"}}},
			},
			want: []string{},
		},
		{
			name: "empty allow-list allows nothing",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1", "S2"),
				AllowedServers:      domain.AllowList{},
			},
			want: []string{},
		},
		{
			name: "mentions take precedence over allow-list",
			opts: ToolSelectOptions{
				AccessibleServerIDs: ids("S1", "S2"),
				Mentions:            []domain.Mention{{Type: domain.MentionTypeServer, ServerID: "S2"}},
				AllowedServers:      domain.AllowList{"S1": {Tools: []string{"A"}}},
			},
			want: []string{"S2:B"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := SelectTools(available, tc.opts)
			require.Equal(t, tc.want, keys(got))
		})
	}
}

func TestSelectTools_AccessibleBoundary(t *testing.T) {
	t.Parallel()

	available := toolMap(tool("S1", "s1", "A"), tool("S2", "s2", "B"))
	variants := []ToolSelectOptions{
		{AccessibleServerIDs: ids("S1"), Mentions: []domain.Mention{{ServerID: "S1"}, {ServerID: "S2"}}},
		{AccessibleServerIDs: ids("S1"), AllowedServers: domain.AllowList{"S1": {Tools: []string{"A"}}, "S2": {Tools: []string{"B"}}}},
	}

	for _, opts := range variants {
		got := SelectTools(available, opts)
		require.Equal(t, []string{"S1:A"}, keys(got))
	}
}
