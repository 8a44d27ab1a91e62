// Package options configures the collaborators used by mcphub commands.
package options

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcphub/internal/config"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

// Database is a repository.DB that owns its connections.
type Database interface {
	repository.DB
	Close()
}

// DatabaseOpener connects to the database at url.
type DatabaseOpener func(ctx context.Context, url string, maxConns int32) (Database, error)

type CmdOption func(*CmdOptions) error

type CmdOptions struct {
	ConfigLoader config.Loader
	OpenDatabase DatabaseOpener
}

func defaultOptions() CmdOptions {
	return CmdOptions{
		ConfigLoader: &config.DefaultLoader{},
		OpenDatabase: OpenPostgres,
	}
}

func NewOptions(opt ...CmdOption) (CmdOptions, error) {
	opts := defaultOptions()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return CmdOptions{}, err
		}
	}

	return opts, nil
}

func WithConfigLoader(l config.Loader) CmdOption {
	return func(o *CmdOptions) error {
		if l == nil || reflect.ValueOf(l).IsNil() {
			return fmt.Errorf("config loader cannot be nil")
		}
		o.ConfigLoader = l
		return nil
	}
}

func WithDatabaseOpener(fn DatabaseOpener) CmdOption {
	return func(o *CmdOptions) error {
		if fn == nil {
			return fmt.Errorf("database opener cannot be nil")
		}
		o.OpenDatabase = fn
		return nil
	}
}

// OpenPostgres opens a pgx connection pool.
func OpenPostgres(ctx context.Context, url string, maxConns int32) (Database, error) {
	pool, err := repository.Connect(ctx, url, maxConns)
	if err != nil {
		return nil, err
	}
	return pool, nil
}
