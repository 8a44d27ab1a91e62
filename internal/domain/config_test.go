package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeServerConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ServerConfig
		wantErr string
	}{
		{
			name:  "stdio",
			input: `{"command":"npx","args":["-y","@modelcontextprotocol/server-time"],"env":{"TZ":"UTC"}}`,
			want: StdioConfig{
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-time"},
				Env:     map[string]string{"TZ": "UTC"},
			},
		},
		{
			name:  "remote",
			input: `{"url":"https://example.com/mcp","headers":{"Authorization":"Bearer x"}}`,
			want: RemoteConfig{
				URL:     "https://example.com/mcp",
				Headers: map[string]string{"Authorization": "Bearer x"},
			},
		},
		{
			name:    "both shapes",
			input:   `{"command":"npx","url":"https://example.com"}`,
			wantErr: "invalid config",
		},
		{
			name:    "neither shape",
			input:   `{"foo":"bar"}`,
			wantErr: "invalid config",
		},
		{
			name:    "empty command",
			input:   `{"command":""}`,
			wantErr: "invalid config",
		},
		{
			name:    "args wrong type",
			input:   `{"command":"npx","args":"-y"}`,
			wantErr: "invalid config",
		},
		{
			name:    "unsupported scheme",
			input:   `{"url":"ftp://example.com"}`,
			wantErr: "scheme must be http or https",
		},
		{
			name:    "not an object",
			input:   `"npx"`,
			wantErr: "invalid config",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeServerConfig([]byte(tc.input))
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEncodeServerConfig_RoundTripsKind(t *testing.T) {
	t.Parallel()

	data, err := EncodeServerConfig(RemoteConfig{URL: "https://example.com/mcp"})
	require.NoError(t, err)
	require.JSONEq(t, `{"url":"https://example.com/mcp"}`, string(data))

	cfg, err := DecodeServerConfig(data)
	require.NoError(t, err)
	require.Equal(t, ConfigKindRemote, cfg.Kind())

	_, err = EncodeServerConfig(nil)
	require.Error(t, err)
}
