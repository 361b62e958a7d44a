// Package backend opens the storage.Store selected by DATA_BACKEND.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"spendwise/internal/config"
	"spendwise/internal/storage"
)

// Kind names a storage implementation.
type Kind string

const (
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
	Memory   Kind = "memory"
)

// Kinds lists the supported kinds in preference order.
func Kinds() []Kind {
	return []Kind{SQLite, Postgres, Memory}
}

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown data backend %q", s)
}

// Options selects a store and carries its connection settings.
type Options struct {
	Kind        Kind
	SQLitePath  string
	PostgresDSN string
}

// OptionsFromConfig maps the application config onto Options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("nil config")
	}
	kind, err := ParseKind(cfg.DataBackend)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Kind:        kind,
		SQLitePath:  cfg.SQLiteDBPath,
		PostgresDSN: cfg.DatabaseDSN,
	}, nil
}

// Validate checks that the settings the kind needs are present.
func (o Options) Validate() error {
	switch o.Kind {
	case SQLite:
		if strings.TrimSpace(o.SQLitePath) == "" {
			return errors.New("sqlite backend needs SQLITE_DB_PATH")
		}
	case Postgres:
		if strings.TrimSpace(o.PostgresDSN) == "" {
			return errors.New("postgres backend needs DATABASE_DSN")
		}
	case Memory:
	default:
		return fmt.Errorf("unknown data backend %q", o.Kind)
	}
	return nil
}

// Opened is a ready store together with the function releasing it.
// Close is nil when there is nothing to release.
type Opened struct {
	Kind  Kind
	Store storage.Store
	Close func() error
}
