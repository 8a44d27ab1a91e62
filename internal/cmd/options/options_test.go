package options

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/config"
)

type stubLoader struct{}

func (*stubLoader) Load(string) (*config.Config, error) {
	return config.Default(), nil
}

func TestNewOptions_Defaults(t *testing.T) {
	t.Parallel()

	opts, err := NewOptions()
	require.NoError(t, err)
	require.IsType(t, &config.DefaultLoader{}, opts.ConfigLoader)
	require.NotNil(t, opts.OpenDatabase)
}

func TestNewOptions(t *testing.T) {
	t.Parallel()

	opener := func(context.Context, string, int32) (Database, error) {
		return pgxmock.NewPool()
	}

	tests := []struct {
		name    string
		opts    []CmdOption
		wantErr string
	}{
		{
			name: "valid options",
			opts: []CmdOption{WithConfigLoader(&stubLoader{}), WithDatabaseOpener(opener)},
		},
		{
			name: "nil option is skipped",
			opts: []CmdOption{nil},
		},
		{
			name:    "nil config loader",
			opts:    []CmdOption{WithConfigLoader(nil)},
			wantErr: "config loader cannot be nil",
		},
		{
			name:    "config loader interface pointing to nil",
			opts:    []CmdOption{WithConfigLoader((*stubLoader)(nil))},
			wantErr: "config loader cannot be nil",
		},
		{
			name:    "nil database opener",
			opts:    []CmdOption{WithDatabaseOpener(nil)},
			wantErr: "database opener cannot be nil",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			opts, err := NewOptions(tc.opts...)
			if tc.wantErr != "" {
				require.EqualError(t, err, tc.wantErr)
				require.Equal(t, CmdOptions{}, opts)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, opts.ConfigLoader)
			require.NotNil(t, opts.OpenDatabase)
		})
	}
}
