package backend

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"spendwise/internal/config"
	"spendwise/internal/storage/memory"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"sqlite", SQLite, false},
		{" Postgres ", Postgres, false},
		{"MEMORY", Memory, false},
		{"sheets", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKind(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := OptionsFromConfig(nil); err == nil {
		t.Error("OptionsFromConfig(nil) should fail")
	}
	if _, err := OptionsFromConfig(&config.Config{DataBackend: "excel"}); err == nil {
		t.Error("OptionsFromConfig() should reject unknown backend")
	}

	opts, err := OptionsFromConfig(&config.Config{DataBackend: "postgres", DatabaseDSN: "postgres://x"})
	if err != nil {
		t.Fatalf("OptionsFromConfig() error = %v", err)
	}
	if opts.Kind != Postgres || opts.PostgresDSN != "postgres://x" {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"sqlite ok", Options{Kind: SQLite, SQLitePath: "x.db"}, ""},
		{"sqlite missing path", Options{Kind: SQLite, SQLitePath: "  "}, "SQLITE_DB_PATH"},
		{"postgres missing dsn", Options{Kind: Postgres}, "DATABASE_DSN"},
		{"memory ok", Options{Kind: Memory}, ""},
		{"unknown", Options{Kind: "excel"}, "unknown data backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_Open(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, opts := range []Options{
		{Kind: SQLite, SQLitePath: filepath.Join(t.TempDir(), "db", "test.db")},
		{Kind: Memory},
	} {
		t.Run(string(opts.Kind), func(t *testing.T) {
			opened, err := f.Open(ctx, opts)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if opened.Close != nil {
				defer opened.Close()
			}
			if opened.Kind != opts.Kind {
				t.Errorf("Kind = %q, want %q", opened.Kind, opts.Kind)
			}
			if err := opened.Store.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}

	if _, err := f.Open(ctx, Options{Kind: Postgres}); err == nil {
		t.Error("Open() should validate before connecting")
	}
}

func TestFactory_Register(t *testing.T) {
	f := NewFactory(nil)
	boom := errors.New("boom")
	f.Register(Memory, func(context.Context, Options) (*Opened, error) { return nil, boom })

	_, err := f.Open(context.Background(), Options{Kind: Memory})
	if !errors.Is(err, boom) {
		t.Fatalf("Open() error = %v, want wrapped boom", err)
	}

	store := memory.New()
	f.Register(Memory, func(context.Context, Options) (*Opened, error) { return &Opened{Store: store}, nil })
	opened, err := f.Open(context.Background(), Options{Kind: Memory})
	if err != nil || opened.Store != store {
		t.Fatalf("Open() = %+v, %v", opened, err)
	}
}
