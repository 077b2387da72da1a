// Package store persists the purchase ledger in libsql (local file or Turso).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/portfoliotools/coinbuyer/internal/config"
)

const driverLibsql = "libsql"

// Location is where the ledger lives: an in-memory database, a local file, or
// a remote libsql database.
type Location struct {
	DSN    string
	Local  bool
	Memory bool
}

// String renders the location with any auth token removed.
func (l Location) String() string {
	if l.Memory || l.Local {
		return l.DSN
	}
	parsed, err := url.Parse(l.DSN)
	if err != nil {
		return "(invalid url)"
	}
	query := parsed.Query()
	if query.Has("authToken") {
		query.Set("authToken", "redacted")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

// ResolveLocation turns store configuration into a ledger location. A URL wins
// over a path; local parent directories are created.
func ResolveLocation(cfg config.StoreConfig) (Location, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		return remoteLocation(raw, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return Location{}, errors.New("store path or url is required")
	case path == ":memory:":
		return Location{DSN: path, Local: true, Memory: true}, nil
	case strings.HasPrefix(path, "libsql:"):
		return remoteLocation(path, cfg.AuthToken)
	case strings.HasPrefix(path, "file:"):
		parsed, err := url.Parse(path)
		if err != nil {
			return Location{}, fmt.Errorf("invalid store path: %w", err)
		}
		local := parsed.Path
		if local == "" {
			local = parsed.Opaque
		}
		if err := ensureLedgerDir(strings.TrimPrefix(local, "//")); err != nil {
			return Location{}, err
		}
		return Location{DSN: path, Local: true}, nil
	default:
		if err := ensureLedgerDir(path); err != nil {
			return Location{}, err
		}
		return Location{DSN: "file:" + filepath.Clean(path), Local: true}, nil
	}
}

func remoteLocation(raw string, token string) (Location, error) {
	if strings.TrimSpace(token) == "" {
		return Location{DSN: raw}, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") == "" {
		query.Set("authToken", token)
		parsed.RawQuery = query.Encode()
	}
	return Location{DSN: parsed.String()}, nil
}

func ensureLedgerDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if strings.TrimSpace(path) == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}

	// #nosec G301 -- data directories use 0755 like the XDG data dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// Store is an open purchase ledger.
type Store struct {
	DB       *sql.DB
	driver   string
	location Location
}

// Open connects to the ledger described by cfg and verifies the connection.
// Local ledgers use a single connection so writes never contend.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	loc, err := ResolveLocation(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, loc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", loc, err)
	}
	if loc.Local {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger %s: %w", loc, err)
	}

	return &Store{DB: db, driver: driver, location: loc}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Location returns where the ledger lives.
func (s *Store) Location() Location {
	if s == nil {
		return Location{}
	}
	return s.location
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	return s.DB.PingContext(ctx)
}
