package backend

import (
	"context"
	"fmt"

	"spendwise/internal/log"
	"spendwise/internal/storage"
	"spendwise/internal/storage/memory"
	"spendwise/internal/storage/postgres"
)

// OpenFunc opens one kind of store.
type OpenFunc func(ctx context.Context, opts Options) (*Opened, error)

// Factory opens stores by kind.
type Factory struct {
	logger  *log.Logger
	openers map[Kind]OpenFunc
}

// NewFactory returns a factory knowing every built-in kind.
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	f := &Factory{
		logger:  logger.WithComponent(log.ComponentBackend),
		openers: make(map[Kind]OpenFunc),
	}
	f.Register(SQLite, f.openSQLite)
	f.Register(Postgres, f.openPostgres)
	f.Register(Memory, f.openMemory)
	return f
}

// Register installs or replaces the opener for kind.
func (f *Factory) Register(kind Kind, open OpenFunc) {
	f.openers[kind] = open
}

// Open validates opts and opens the matching store.
func (f *Factory) Open(ctx context.Context, opts Options) (*Opened, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	open, ok := f.openers[opts.Kind]
	if !ok {
		return nil, fmt.Errorf("no opener registered for %q", opts.Kind)
	}
	opened, err := open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", opts.Kind, err)
	}
	opened.Kind = opts.Kind
	return opened, nil
}

func (f *Factory) openSQLite(ctx context.Context, opts Options) (*Opened, error) {
	repo, err := storage.NewSQLiteRepository(opts.SQLitePath)
	if err != nil {
		return nil, err
	}
	schema := repo.Schema()
	f.logger.InfoContext(ctx, "SQLite backend ready",
		"db_path", opts.SQLitePath,
		"schema_version", schema.Version,
		"migrated", schema.Applied)
	return &Opened{Store: repo, Close: repo.Close}, nil
}

func (f *Factory) openPostgres(ctx context.Context, opts Options) (*Opened, error) {
	store, err := postgres.Open(opts.PostgresDSN)
	if err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Postgres backend ready")
	return &Opened{Store: store, Close: store.Close}, nil
}

func (f *Factory) openMemory(ctx context.Context, _ Options) (*Opened, error) {
	f.logger.WarnContext(ctx, "Memory backend ready, data is lost on restart")
	return &Opened{Store: memory.New()}, nil
}
