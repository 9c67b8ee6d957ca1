package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/tabula/internal/jsonl"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// loadAllJSONL inserts every record of every JSONL collection in dataDir,
// keyed by the default id field. Loading is transactional: all files load
// or the database stays empty. Malformed lines are skipped.
func loadAllJSONL(db *sql.DB, dataDir string) (int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dataDir, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		collection, ok := collectionFromFile(e.Name())
		if !ok {
			continue
		}
		records, err := jsonl.Read(filepath.Join(dataDir, e.Name()))
		if err != nil {
			return 0, err
		}
		if err := upsertRecords(tx, collection, types.DefaultIDField, records); err != nil {
			return 0, fmt.Errorf("loading %s: %w", e.Name(), err)
		}
		total += len(records)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return total, nil
}

// upsertRecords writes records to a collection inside tx. A record whose id
// is already stored replaces that row's body and keeps its position; other
// records are appended. Records without an id are always appended.
func upsertRecords(tx *sql.Tx, collection, idField string, records []types.Record) error {
	var seq int64
	if err := tx.QueryRow(
		"SELECT COALESCE(MAX(seq), 0) FROM records WHERE collection = ?", collection,
	).Scan(&seq); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	update, err := tx.Prepare(`UPDATE records SET body = ? WHERE collection = ? AND seq =
    (SELECT MIN(seq) FROM records WHERE collection = ? AND rid = ?)`)
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer update.Close()

	insert, err := tx.Prepare("INSERT INTO records (collection, seq, rid, body) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer insert.Close()

	for _, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrInvalidRecord, err)
		}
		rid := rec.ID(idField)
		if rid != "" {
			res, err := update.Exec(string(body), collection, collection, rid)
			if err != nil {
				return fmt.Errorf("updating %q: %w", rid, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				continue
			}
		}
		seq++
		if _, err := insert.Exec(collection, seq, rid, string(body)); err != nil {
			return fmt.Errorf("inserting %q: %w", rid, err)
		}
	}
	return nil
}

// rekey recomputes rid for every row of a collection under idField.
func rekey(tx *sql.Tx, collection, idField string) error {
	rows, err := tx.Query("SELECT seq, body FROM records WHERE collection = ?", collection)
	if err != nil {
		return err
	}
	type row struct {
		seq int64
		rid string
	}
	var pending []row
	for rows.Next() {
		var (
			seq  int64
			body string
		)
		if err := rows.Scan(&seq, &body); err != nil {
			rows.Close()
			return err
		}
		rec, err := jsonl.Decode([]byte(body))
		if err != nil {
			rows.Close()
			return fmt.Errorf("decoding row %d: %w", seq, err)
		}
		pending = append(pending, row{seq: seq, rid: rec.ID(idField)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range pending {
		if _, err := tx.Exec("UPDATE records SET rid = ? WHERE collection = ? AND seq = ?",
			r.rid, collection, r.seq); err != nil {
			return err
		}
	}
	return nil
}
