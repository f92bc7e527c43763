package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"planetgen/internal/editor"
	"planetgen/internal/persistence/snapshot"
)

// SQLiteIndex is a secondary, queryable index of saves and regenerations.
// A single goroutine owns every write; callers never block on disk.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRegen atomic.Uint64
	dropSave  atomic.Uint64
}

type reqKind int

const (
	reqRegen reqKind = iota + 1
	reqSave
	reqQuery
)

type req struct {
	kind reqKind

	regen editor.RegenEntry
	save  SaveRow
	query func(*sql.DB)
}

// SaveRow is one indexed snapshot.
type SaveRow struct {
	ID         int64
	Path       string
	Name       string
	SavedAt    string
	Radius     float32
	SeaLevel   float32
	Layers     int
	Resolution int
	Min        float32
	Max        float32
	Digest     string
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropRegen     uint64
	DropSave      uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			radius REAL NOT NULL,
			sea_level REAL NOT NULL,
			layers INTEGER NOT NULL,
			resolution INTEGER NOT NULL,
			min_elevation REAL NOT NULL,
			max_elevation REAL NOT NULL,
			digest TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_name ON saves(name, id);`,
		`CREATE TABLE IF NOT EXISTS regens (
			seq INTEGER NOT NULL,
			time TEXT NOT NULL,
			cause TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			layers INTEGER NOT NULL,
			min_elevation REAL NOT NULL,
			max_elevation REAL NOT NULL,
			digest TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_regens_digest ON regens(digest);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropRegen:     s.dropRegen.Load(),
		DropSave:      s.dropSave.Load(),
	}
}

// WriteRegen queues one regeneration row. Rows are dropped when the writer
// falls behind; the JSONL regen log remains the source of truth.
func (s *SQLiteIndex) WriteRegen(e editor.RegenEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqRegen, regen: e}:
	default:
		s.dropRegen.Add(1)
	}
	return nil
}

// RecordSave queues one save row.
func (s *SQLiteIndex) RecordSave(path string, state snapshot.SaveStateV1, regen editor.RegenEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	r := SaveRow{
		Path:       path,
		Name:       state.Header.Name,
		SavedAt:    state.Header.SavedAt,
		Radius:     state.Shape.Radius,
		SeaLevel:   state.Shape.SeaLevel,
		Layers:     len(state.Shape.Layers),
		Resolution: state.Render.PlanetResolution,
		Min:        regen.Min,
		Max:        regen.Max,
		Digest:     regen.Digest,
	}
	select {
	case s.ch <- req{kind: reqSave, save: r}:
	default:
		s.dropSave.Add(1)
	}
}

// List returns saves newest first, optionally filtered by name. Reads are
// serialized behind pending writes so a save is visible once RecordSave
// has returned.
func (s *SQLiteIndex) List(ctx context.Context, name string, limit int) ([]SaveRow, error) {
	if limit <= 0 {
		limit = 100
	}
	var (
		rows []SaveRow
		err  error
	)
	q := `SELECT id,path,name,saved_at,radius,sea_level,layers,resolution,min_elevation,max_elevation,digest FROM saves`
	args := []any{}
	if name != "" {
		q += ` WHERE name = ?`
		args = append(args, name)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	qerr := s.run(ctx, func(db *sql.DB) {
		var rs *sql.Rows
		rs, err = db.QueryContext(ctx, q, args...)
		if err != nil {
			return
		}
		defer rs.Close()
		for rs.Next() {
			var r SaveRow
			if err = rs.Scan(&r.ID, &r.Path, &r.Name, &r.SavedAt, &r.Radius, &r.SeaLevel, &r.Layers, &r.Resolution, &r.Min, &r.Max, &r.Digest); err != nil {
				return
			}
			rows = append(rows, r)
		}
		err = rs.Err()
	})
	if qerr != nil {
		return nil, qerr
	}
	return rows, err
}

// Latest returns the newest save, if any.
func (s *SQLiteIndex) Latest(ctx context.Context) (SaveRow, bool, error) {
	rows, err := s.List(ctx, "", 1)
	if err != nil || len(rows) == 0 {
		return SaveRow{}, false, err
	}
	return rows[0], true, nil
}

// RegenCount returns how many regenerations have been indexed.
func (s *SQLiteIndex) RegenCount(ctx context.Context) (int, error) {
	var (
		n   int
		err error
	)
	if qerr := s.run(ctx, func(db *sql.DB) {
		err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM regens`).Scan(&n)
	}); qerr != nil {
		return 0, qerr
	}
	return n, err
}

func (s *SQLiteIndex) run(ctx context.Context, fn func(*sql.DB)) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqQuery, query: func(db *sql.DB) {
		defer close(done)
		fn(db)
	}}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRegen, _ := s.db.Prepare(`INSERT INTO regens(seq,time,cause,resolution,layers,min_elevation,max_elevation,digest,duration_ms) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSave, _ := s.db.Prepare(`INSERT INTO saves(path,name,saved_at,radius,sea_level,layers,resolution,min_elevation,max_elevation,digest) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRegen != nil {
			_ = insertRegen.Close()
		}
		if insertSave != nil {
			_ = insertSave.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
		case <-ticker.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}
		if !ok {
			break
		}

		if r.kind == reqQuery {
			// Single connection: pending writes must land before reading.
			commit()
			r.query(s.db)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRegen:
			e := r.regen
			if insertRegen != nil {
				if _, err := tx.Stmt(insertRegen).Exec(
					int64(e.Seq),
					e.Time,
					e.Cause,
					e.Resolution,
					e.Layers,
					float64(e.Min),
					float64(e.Max),
					e.Digest,
					e.DurationMS,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSave:
			sv := r.save
			if insertSave != nil {
				if _, err := tx.Stmt(insertSave).Exec(
					sv.Path,
					sv.Name,
					sv.SavedAt,
					float64(sv.Radius),
					float64(sv.SeaLevel),
					sv.Layers,
					sv.Resolution,
					float64(sv.Min),
					float64(sv.Max),
					sv.Digest,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			// Saves commit immediately.
			commit()
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
