package filter

import (
	"slices"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

// ToolSelectOptions describes which tools a caller may receive for a single invocation.
type ToolSelectOptions struct {
	// AccessibleServerIDs is the hard boundary: tools from any other server are never returned.
	AccessibleServerIDs map[string]struct{}

	// Mentions, when non-empty, narrow the result to the mentioned servers or tools.
	Mentions []domain.Mention

	// AllowedServers, when non-nil and no mentions are given, narrows each server to its listed tools.
	// Servers without an entry contribute no tools.
	AllowedServers domain.AllowList
}

// SelectTools filters the available tool mapping (keyed by composite tool key) down to what the caller may use.
//
// Tools from inaccessible servers are always dropped. Mentions take precedence over the allow-list;
// when neither is supplied the result is empty.
func SelectTools(available map[string]domain.ToolHandle, opts ToolSelectOptions) map[string]domain.ToolHandle {
	result := make(map[string]domain.ToolHandle)
	if len(opts.AccessibleServerIDs) == 0 {
		return result
	}

	var keep func(domain.ToolHandle) bool
	switch {
	case len(opts.Mentions) > 0:
		keep = func(t domain.ToolHandle) bool { return matchesAnyMention(t, opts.Mentions) }
	case opts.AllowedServers != nil:
		keep = func(t domain.ToolHandle) bool { return isAllowed(t, opts.AllowedServers) }
	default:
		return result
	}

	for key, tool := range available {
		if _, ok := opts.AccessibleServerIDs[tool.ServerID]; !ok {
			continue
		}
		if keep(tool) {
			result[key] = tool
		}
	}

	return result
}

// matchesAnyMention reports whether the tool is covered by at least one mention.
func matchesAnyMention(t domain.ToolHandle, mentions []domain.Mention) bool {
	return slices.ContainsFunc(mentions, func(m domain.Mention) bool {
		if m.Type == domain.MentionTypeTool {
			return m.ServerID == t.ServerID && NormalizeString(m.Name) == NormalizeString(t.ToolName)
		}
		return mentionsServer(t, m)
	})
}

// mentionsServer matches a server mention by exact id or by case-insensitive server name.
func mentionsServer(t domain.ToolHandle, m domain.Mention) bool {
	if m.ServerID != "" && m.ServerID == t.ServerID {
		return true
	}
	name := NormalizeString(m.Name)
	return name != "" && name == NormalizeString(t.ServerName)
}

// isAllowed reports whether the allow-list names the tool under its server.
func isAllowed(t domain.ToolHandle, allowed domain.AllowList) bool {
	entry, ok := allowed[t.ServerID]
	if !ok {
		return false
	}
	return slices.Contains(entry.Tools, t.ToolName)
}
