// Package sqlite stores record collections in SQLite for querying, with one
// JSONL file per collection in the data directory as the source of truth.
// Attach loads every <collection>.jsonl into a fresh database; each write
// rewrites the affected JSONL file atomically.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tabula/pkg/types"
)

const (
	dbFileName = "tabula.db"
	jsonlExt   = ".jsonl"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Store is a set of record collections backed by SQLite.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      *zap.Logger

	// keyedBy records the id field each collection's rid column was
	// computed with. Collections not listed use types.DefaultIDField.
	keyedBy map[string]string
}

// NewStore returns a detached Store. A nil log discards output.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log}
}

// Attach opens a fresh database in config.DataDir and loads every JSONL
// collection found there. Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// The database is a cache of the JSONL files and is rebuilt each time.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	n, err := loadAllJSONL(db, dataDir)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	s.db = db
	s.config = config
	s.keyedBy = make(map[string]string)
	s.attached = true
	s.log.Debug("store attached", zap.String("data_dir", dataDir), zap.Int("records", n))
	return nil
}

// Detach closes the database. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return err
	}
	s.db = nil
	s.attached = false
	s.log.Debug("store detached")
	return nil
}

// Collection returns a handle to the named collection. idField names the
// record field holding the id; empty means types.DefaultIDField. The
// collection need not exist yet.
func (s *Store) Collection(name, idField string) (*Collection, error) {
	if !collectionName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidCollection, name)
	}
	if idField == "" {
		idField = types.DefaultIDField
	}
	return &Collection{store: s, name: name, idField: idField}, nil
}

// Collections lists the collections that hold at least one record.
func (s *Store) Collections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}
	rows, err := s.db.Query("SELECT DISTINCT collection FROM records")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, rows.Err()
}

func (s *Store) jsonlPath(collection string) string {
	return filepath.Join(s.config.DataDir, collection+jsonlExt)
}

// collectionFromFile returns the collection stored in a data-dir file name.
func collectionFromFile(name string) (string, bool) {
	if !strings.HasSuffix(name, jsonlExt) {
		return "", false
	}
	c := strings.TrimSuffix(name, jsonlExt)
	return c, collectionName.MatchString(c)
}

// generateID returns a new UUID v7 for records written without an id.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
