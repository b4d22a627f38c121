package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"landmass/internal/world"
)

// SQLiteIndex keeps a queryable table of tick statistics. Writes are queued to a
// single writer goroutine and dropped when it falls behind. Every method is safe
// for concurrent use, including Close.
type SQLiteIndex struct {
	db     *sql.DB
	insert *sql.Stmt
	logger *log.Logger

	ch chan indexReq
	wg sync.WaitGroup

	// mu guards closed and sends on ch.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
}

type indexReq struct {
	tick world.TickStats
	sync chan struct{} // non-nil: commit and signal
}

const insertTickSQL = `INSERT OR REPLACE INTO ticks(tick,observer_x,observer_y,center_x,center_y,
	created,installed,shown,hidden,visible,evicted,pending,resident,duration_ns,raw_json)
	VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// OpenSQLite opens or creates the index at path. A nil logger uses log.Default.
func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
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
	// One connection for the writer, one for readers.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	insert, err := db.Prepare(insertTickSQL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &SQLiteIndex{
		db:     db,
		insert: insert,
		logger: logger,
		ch:     make(chan indexReq, 8192),
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
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			observer_x REAL NOT NULL,
			observer_y REAL NOT NULL,
			center_x INTEGER NOT NULL,
			center_y INTEGER NOT NULL,
			created INTEGER NOT NULL,
			installed INTEGER NOT NULL,
			shown INTEGER NOT NULL,
			hidden INTEGER NOT NULL,
			visible INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			resident INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ticks_duration ON ticks(duration_ns);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordTick queues st for insertion. It never waits for the writer.
func (s *SQLiteIndex) RecordTick(st world.TickStats) error {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- indexReq{tick: st}:
	default:
		// Drop if the indexer falls behind; the JSONL log keeps every tick.
		s.dropped.Add(1)
	}
	return nil
}

// Sync waits until every queued tick is committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	select {
	case s.ch <- indexReq{sync: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many ticks never reached the table, because the queue was
// full or a write failed.
func (s *SQLiteIndex) Dropped() uint64 {
	return s.dropped.Load()
}

// Recent returns up to n committed ticks, newest first.
func (s *SQLiteIndex) Recent(ctx context.Context, n int) ([]world.TickStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tick, observer_x, observer_y, center_x, center_y,
		created, installed, shown, hidden, visible, evicted, pending, resident, duration_ns
		FROM ticks ORDER BY tick DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []world.TickStats
	for rows.Next() {
		var (
			st  world.TickStats
			tk  int64
			dur int64
		)
		if err := rows.Scan(&tk, &st.ObserverX, &st.ObserverY, &st.Center.X, &st.Center.Y,
			&st.Created, &st.Installed, &st.Shown, &st.Hidden, &st.Visible, &st.Evicted,
			&st.Pending, &st.Resident, &dur); err != nil {
			return nil, err
		}
		st.Tick = uint64(tk)
		st.Duration = time.Duration(dur)
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return errors.Join(s.insert.Close(), s.db.Close())
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("tick index: begin: %v", err)
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
		if err := tx.Commit(); err != nil {
			s.logger.Printf("tick index: commit %d ticks: %v", opCount, err)
			s.dropped.Add(uint64(opCount))
		}
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

	for r := range s.ch {
		if r.sync != nil {
			commit()
			close(r.sync)
			continue
		}
		begin()
		if tx == nil {
			s.dropped.Add(1)
			continue
		}
		st := r.tick
		raw, _ := json.Marshal(st)
		if _, err := tx.Stmt(s.insert).Exec(
			int64(st.Tick),
			float64(st.ObserverX),
			float64(st.ObserverY),
			st.Center.X,
			st.Center.Y,
			st.Created,
			st.Installed,
			st.Shown,
			st.Hidden,
			st.Visible,
			st.Evicted,
			st.Pending,
			st.Resident,
			int64(st.Duration),
			string(raw),
		); err != nil {
			// The rollback loses the uncommitted ticks of this batch as well.
			s.logger.Printf("tick index: insert tick %d: %v (dropping %d uncommitted)", st.Tick, err, opCount)
			s.dropped.Add(uint64(opCount) + 1)
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
