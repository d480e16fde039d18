package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Backend describes how to reach one database type.
type Backend struct {
	// Driver is the database/sql driver name.
	Driver string
	// Dialect is the goose dialect used for migrations.
	Dialect string
	// DSN builds the data source name from a config.
	DSN func(Config) string
	// Numbered reports whether placeholders are $1, $2, ... instead of ?.
	Numbered bool
	// MaxOpenConns caps the pool. Zero leaves the driver default.
	MaxOpenConns int
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register adds a backend under a store type name.
func Register(name string, b Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = b
}

func init() {
	Register("sqlite", Backend{
		Driver:  "sqlite",
		Dialect: "sqlite3",
		DSN:     buildSQLiteDSN,
		// :memory: databases live per connection
		MaxOpenConns: 1,
	})
	Register("postgres", Backend{
		Driver:   "pgx",
		Dialect:  "postgres",
		DSN:      buildPostgresDSN,
		Numbered: true,
	})
}

// Get retrieves a backend by store type.
func Get(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[strings.ToLower(name)]
	return b, ok
}

// ListTypes returns all registered store types (sorted).
func ListTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a store type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownStoreTypeError is returned when an unknown store type is requested.
type UnknownStoreTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownStoreTypeError) Error() string {
	return fmt.Sprintf("unknown store type %q\nAvailable stores: %v\nHint: Check store.type in uqtable.yaml", e.Type, e.Available)
}

func buildSQLiteDSN(cfg Config) string {
	db := cfg.Database
	if db == "" {
		db = ":memory:"
	}
	return db + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// buildPostgresDSN constructs a key=value connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.User != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.User)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
