// Package config reads the ini configuration file. Command line flags override its values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/ini.v1"
)

const DefaultPath = "editorial.ini"

type Config struct {
	Database Database `ini:"database"`
	HTTP     HTTP     `ini:"http"`
	Engine   Engine   `ini:"engine"`
	Notify   Notify   `ini:"notify"`
	Log      Log      `ini:"log"`
}

type Database struct {
	URL string `ini:"url"` // see github.com/xo/dburl
}

type HTTP struct {
	Listen string `ini:"listen"`
	// Base is stripped off every request path. Your reverse proxy must not strip it.
	Base string `ini:"base"`
}

type Engine struct {
	MinReferences     int           `ini:"min_references"`
	RepositoryTimeout time.Duration `ini:"repository_timeout"`
}

type Notify struct {
	QueueSize      int           `ini:"queue_size"`
	WebhookURL     string        `ini:"webhook_url"`
	WebhookTimeout time.Duration `ini:"webhook_timeout"`
	WebhookRate    float64       `ini:"webhook_rate"` // requests per second, zero means unlimited
	Outbox         bool          `ini:"outbox"`
	OutboxFormat   string        `ini:"outbox_format"` // json or cbor
}

type Log struct {
	Level string `ini:"level"`
}

// Default returns the configuration which is used if no file exists.
func Default() Config {
	return Config{
		Database: Database{
			URL: "sqlite3:editorial.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&_txlock=immediate",
		},
		HTTP: HTTP{
			Listen: "127.0.0.1:8080",
		},
		Engine: Engine{
			MinReferences:     2,
			RepositoryTimeout: 5 * time.Second,
		},
		Notify: Notify{
			QueueSize:      256,
			WebhookTimeout: 5 * time.Second,
			OutboxFormat:   "json",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the file at path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	var cfg = Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := file.MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("mapping %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Database.URL == "":
		return errors.New("database url is empty")
	case c.HTTP.Listen == "":
		return errors.New("listen address is empty")
	case c.Engine.MinReferences < 0:
		return errors.New("min_references must not be negative")
	case c.Engine.RepositoryTimeout < 0:
		return errors.New("repository_timeout must not be negative")
	case c.Notify.QueueSize <= 0:
		return errors.New("queue_size must be positive")
	case c.Notify.WebhookRate < 0:
		return errors.New("webhook_rate must not be negative")
	case c.Notify.OutboxFormat != "json" && c.Notify.OutboxFormat != "cbor":
		return fmt.Errorf("unknown outbox_format: %s", c.Notify.OutboxFormat)
	}
	return nil
}
