package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thornview/tagcache/tagcache/metadata"
)

// scanCache remembers extracted records keyed by host path so unchanged
// files skip tag parsing on the next build. It is read once into a snapshot
// before the workers start and written back once after collection, so the
// sqlite handle is never touched concurrently.
type scanCache struct {
	db *sql.DB
}

type cachedRecord struct {
	MTime  int64
	Size   int64
	Record *metadata.Record
}

func openScanCache(dsn string) (*scanCache, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open scan cache %s: %w", dsn, err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scan_cache (
		path   TEXT PRIMARY KEY,
		mtime  INTEGER NOT NULL,
		size   INTEGER NOT NULL,
		record BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init scan cache %s: %w", dsn, err)
	}
	return &scanCache{db: db}, nil
}

func (c *scanCache) snapshot() (map[string]cachedRecord, error) {
	rows, err := c.db.Query(`SELECT path, mtime, size, record FROM scan_cache`)
	if err != nil {
		return nil, fmt.Errorf("read scan cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]cachedRecord)
	for rows.Next() {
		var path string
		var row cachedRecord
		var blob []byte
		if err := rows.Scan(&path, &row.MTime, &row.Size, &blob); err != nil {
			return nil, fmt.Errorf("read scan cache: %w", err)
		}
		var rec metadata.Record
		if err := json.Unmarshal(blob, &rec); err != nil {
			// A stale or hand-edited row just misses the cache.
			continue
		}
		row.Record = &rec
		out[path] = row
	}
	return out, rows.Err()
}

// store upserts the rows extracted this run. Cached hits are already
// current and are skipped.
func (c *scanCache) store(jobs []job, results []*metadata.Record, snapshot map[string]cachedRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO scan_cache (path, mtime, size, record) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, rec := range results {
		if rec == nil {
			continue
		}
		j := jobs[i]
		if row, ok := snapshot[j.path]; ok && row.MTime == j.mtime && row.Size == j.size {
			continue
		}
		blob, err := json.Marshal(rec)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(j.path, j.mtime, j.size, blob); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *scanCache) Close() error { return c.db.Close() }
