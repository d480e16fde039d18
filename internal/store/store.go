// Package store archives datasets in a SQL database.
//
// Each dataset is stored as one uq_datasets row, one uq_columns row per header
// and one uq_cells row per value, holding the value's canonical text form.
// Load rebuilds the dataset through the same parse and validation path the
// codecs use, so Load(Save(d)) equals d.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

//go:embed migrations/*.sql
var migrations embed.FS

// createdLayout sorts lexically in time order.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when no dataset has the requested id.
var ErrNotFound = errors.New("dataset not found")

// Config selects and addresses the database.
type Config struct {
	Type     string `koanf:"type" yaml:"type"` // sqlite, postgres
	Database string `koanf:"database" yaml:"database"`
	Host     string `koanf:"host" yaml:"host,omitempty"`
	Port     int    `koanf:"port" yaml:"port,omitempty"`
	User     string `koanf:"user" yaml:"user,omitempty"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	SSLMode  string `koanf:"sslmode" yaml:"sslmode,omitempty"`
}

// Info summarises a stored dataset.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is a dataset archive backed by database/sql.
type Store struct {
	db      *sql.DB
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Open connects to the database described by cfg.
// If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	backend, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownStoreTypeError{Type: cfg.Type, Available: ListTypes()}
	}

	db, err := sql.Open(backend.Driver, backend.DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
	}
	if backend.MaxOpenConns > 0 {
		db.SetMaxOpenConns(backend.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", cfg.Type, err)
	}

	s := New(db, backend, logger)
	s.logger.Debug("store opened", slog.String("type", cfg.Type), slog.String("database", cfg.Database))
	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, backend: backend, logger: logger, now: time.Now}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.backend.Dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) q(query string) string {
	if s.backend.Numbered {
		return rebind(query)
	}
	return query
}

// Save stores ds in a single transaction and returns its new id.
func (s *Store) Save(ctx context.Context, ds *dataset.Dataset) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	id := uuid.New().String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO uq_datasets (id, name, description, num_rows, created_at) VALUES (?, ?, ?, ?, ?)`),
		id, ds.Name(), ds.Description(), ds.NumRows(), s.now().UTC().Format(createdLayout),
	); err != nil {
		return "", fmt.Errorf("failed to insert dataset: %w", err)
	}

	headers := ds.Headers()
	for i, h := range headers {
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO uq_columns (dataset_id, position, name, type, unit) VALUES (?, ?, ?, ?, ?)`),
			id, i, h.Name, h.Type.Code(), h.Unit,
		); err != nil {
			return "", fmt.Errorf("failed to insert column %q: %w", h.Name, err)
		}
	}

	if ds.NumRows() > 0 {
		stmt, err := tx.PrepareContext(ctx,
			s.q(`INSERT INTO uq_cells (dataset_id, row_index, position, value) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return "", fmt.Errorf("failed to prepare cell insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for r := 0; r < ds.NumRows(); r++ {
			row, err := ds.Row(r)
			if err != nil {
				return "", err
			}
			for c, v := range row {
				text, err := dataset.FormatValue(v, headers[c].Type)
				if err != nil {
					return "", err
				}
				if _, err := stmt.ExecContext(ctx, id, r, c, text); err != nil {
					return "", fmt.Errorf("failed to insert cell (%d, %d): %w", r, c, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit dataset: %w", err)
	}
	s.logger.Info("dataset saved", slog.String("id", id), slog.String("name", ds.Name()), slog.Int("rows", ds.NumRows()))
	return id, nil
}

// Load rebuilds a stored dataset.
func (s *Store) Load(ctx context.Context, id string) (*dataset.Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	var name, description string
	var numRows int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT name, description, num_rows FROM uq_datasets WHERE id = ?`), id,
	).Scan(&name, &description, &numRows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	headers, err := s.loadHeaders(ctx, id)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.New(name, description, headers)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return ds, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT row_index, position, value FROM uq_cells WHERE dataset_id = ? ORDER BY row_index, position`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]any, len(headers))
	want := 0
	for rows.Next() {
		var r, c int
		var text string
		if err := rows.Scan(&r, &c, &text); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		if r != ds.NumRows() || c != want {
			return nil, fmt.Errorf("dataset %s: unexpected cell (%d, %d)", id, r, c)
		}
		v, err := dataset.ParseValue(text, headers[c].Type)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: cell (%d, %d): %w", id, r, c, err)
		}
		values[c] = v
		want++
		if want == len(headers) {
			if err := ds.AddRow(values...); err != nil {
				return nil, err
			}
			want = 0
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cells: %w", err)
	}
	if want != 0 || ds.NumRows() != numRows {
		return nil, fmt.Errorf("dataset %s: stored %d rows, found %d", id, numRows, ds.NumRows())
	}
	return ds, nil
}

func (s *Store) loadHeaders(ctx context.Context, id string) ([]dataset.Header, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT name, type, unit FROM uq_columns WHERE dataset_id = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var headers []dataset.Header
	for rows.Next() {
		var h dataset.Header
		var code string
		if err := rows.Scan(&h.Name, &code, &h.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if h.Type, err = dataset.ParseColumnType(code); err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, rows.Err()
}

// List returns every stored dataset, newest first.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.description, d.num_rows, d.created_at,
			(SELECT COUNT(*) FROM uq_columns c WHERE c.dataset_id = d.id)
		FROM uq_datasets d
		ORDER BY d.created_at DESC, d.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	infos := []Info{}
	for rows.Next() {
		var info Info
		var created string
		if err := rows.Scan(&info.ID, &info.Name, &info.Description, &info.Rows, &created, &info.Columns); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		if info.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
			return nil, fmt.Errorf("dataset %s: bad created_at %q: %w", info.ID, created, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a stored dataset.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"uq_cells", "uq_columns"} {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE dataset_id = ?`), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM uq_datasets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}
