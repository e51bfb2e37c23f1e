package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vango-dev/dux/internal/errors"
	"github.com/vango-dev/dux/pkg/storage"
)

// OpenAreas opens the durable and session backends and routes them. When
// both areas use the same sqlite or file path they share one backend.
func (c *Config) OpenAreas(ctx context.Context, logger *slog.Logger) (*storage.Areas, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	durable, err := c.openBackend(c.Storage.Durable)
	if err != nil {
		return nil, errors.New("D103").WithKey("durable").Wrap(err)
	}

	var session storage.Backend
	if c.sameBackend() {
		session = durable
	} else {
		session, err = c.openBackend(c.Storage.Session)
		if err != nil {
			durable.Close()
			return nil, errors.New("D103").WithKey("session").Wrap(err)
		}
	}

	logger.Debug("storage opened",
		"durable", c.Storage.Durable.Driver,
		"session", c.Storage.Session.Driver)

	areas := storage.NewAreas(durable, session)
	areas.SetTimeout(c.StorageTimeout())
	return areas, nil
}

func (c *Config) sameBackend() bool {
	d, s := c.Storage.Durable, c.Storage.Session
	if d.Driver != s.Driver {
		return false
	}
	switch d.Driver {
	case DriverSQLite, DriverFile:
		return c.resolve(d.Path) == c.resolve(s.Path) && d.Table == s.Table
	case DriverS3:
		return d.Bucket == s.Bucket && d.Prefix == s.Prefix && d.Endpoint == s.Endpoint
	}
	return false
}

func (c *Config) openBackend(b BackendConfig) (storage.Backend, error) {
	switch b.Driver {
	case DriverSQLite:
		path := c.resolve(b.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		var opts []storage.SQLOption
		if b.Table != "" {
			opts = append(opts, storage.WithSQLTableName(b.Table))
		}
		return storage.OpenSQLite(path, opts...)

	case DriverFile:
		return storage.NewFileBackend(c.resolve(b.Path))

	case DriverS3:
		client := storage.NewS3Client(storage.S3ClientConfig{
			Region:   b.Region,
			Endpoint: b.Endpoint,
		})
		var opts []storage.S3Option
		if b.Prefix != "" {
			opts = append(opts, storage.WithS3Prefix(b.Prefix))
		}
		return storage.NewS3Backend(client, b.Bucket, opts...), nil

	default:
		return storage.NewMemoryBackend(), nil
	}
}
