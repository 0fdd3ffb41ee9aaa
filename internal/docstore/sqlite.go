package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultPollInterval = 500 * time.Millisecond

// SQLite stores documents as JSON blobs in a single table. Subscribers are refreshed after
// in-process writes and whenever PRAGMA data_version reports a commit from another connection.
type SQLite struct {
	db   *sql.DB
	path string
	log  *slog.Logger
	now  func() time.Time

	// writeMu serializes in-process writers so seq allocation never races.
	writeMu sync.Mutex

	mu      sync.Mutex
	nextSub int64
	subs    map[int64]*subscription
	closed  bool

	dispatch dispatcher

	stopPoll context.CancelFunc
	pollDone chan struct{}
}

type SQLiteOptions struct {
	// PollInterval is how often other processes' commits are checked for; <0 disables polling.
	PollInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// OpenSQLite opens (creating if needed) the document database at path.
func OpenSQLite(ctx context.Context, path string, opts SQLiteOptions) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateDocs(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLite{
		db:   db,
		path: path,
		log:  opts.Logger,
		now:  opts.Now,
		subs: map[int64]*subscription{},
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	interval := opts.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	if interval > 0 {
		if err := s.startPoll(interval); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

func migrateDocs(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS docs (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			collection_id TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY(collection, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_docs_collection ON docs(collection, created_at_unixms DESC, seq DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_docs_group ON docs(collection_id, created_at_unixms DESC, seq DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (s *SQLite) nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM docs`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// put upserts one document; callers hold writeMu.
func (s *SQLite) put(ctx context.Context, collection, id string, data map[string]any, keepSeq bool) error {
	js, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if keepSeq {
		err = tx.QueryRowContext(ctx, `SELECT seq FROM docs WHERE collection = ? AND id = ?`, collection, id).Scan(&seq)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}
	if seq == 0 {
		if seq, err = s.nextSeq(ctx, tx); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO docs(collection, id, collection_id, created_at_unixms, seq, json)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			created_at_unixms = excluded.created_at_unixms,
			seq = excluded.seq,
			json = excluded.json
	`, collection, id, leaf(collection), unixMS(createdAt(data)), seq, string(js))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if err := validCollection(collection); err != nil {
		return "", err
	}
	collection = strings.Trim(collection, "/")
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	s.writeMu.Lock()
	err := s.put(ctx, collection, id, resolveTimestamps(fields, s.now()), false)
	s.writeMu.Unlock()
	if err != nil {
		return "", err
	}
	s.notify(collection)
	return id, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := validCollection(collection); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("set %s: id is required", collection)
	}
	collection = strings.Trim(collection, "/")
	s.writeMu.Lock()
	err := s.put(ctx, collection, id, resolveTimestamps(fields, s.now()), false)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}
	s.notify(collection)
	return nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	collection = strings.Trim(collection, "/")
	s.writeMu.Lock()
	err := s.update(ctx, collection, id, patch)
	s.writeMu.Unlock()
	if err != nil {
		return err
	}
	s.notify(collection)
	return nil
}

func (s *SQLite) update(ctx context.Context, collection, id string, patch map[string]any) error {
	var js string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM docs WHERE collection = ? AND id = ?`, collection, id).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	data := map[string]any{}
	if err := json.Unmarshal([]byte(js), &data); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	for k, v := range resolveTimestamps(patch, s.now()) {
		data[k] = v
	}
	return s.put(ctx, collection, id, data, true)
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	collection = strings.Trim(collection, "/")
	res, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(collection)
	}
	return nil
}

func (s *SQLite) query(ctx context.Context, q Query) ([]Doc, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if q.Group != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT collection, id, json FROM docs
			WHERE collection_id = ? AND collection LIKE ? ESCAPE '\'
			ORDER BY created_at_unixms DESC, seq DESC
		`, q.Group, likePrefix(q.Prefix))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT collection, id, json FROM docs
			WHERE collection = ?
			ORDER BY created_at_unixms DESC, seq DESC
		`, q.Collection)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var coll, id, js string
		if err := rows.Scan(&coll, &id, &js); err != nil {
			return nil, err
		}
		data := map[string]any{}
		if err := json.Unmarshal([]byte(js), &data); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", coll, id, err)
		}
		out = append(out, Doc{ID: id, Path: coll + "/" + id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func (s *SQLite) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.Collection = strings.Trim(q.Collection, "/")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextSub++
	sub := &subscription{id: s.nextSub, query: q, onSnapshot: onSnapshot, onError: onError}
	s.subs[sub.id] = sub
	s.dispatch.enqueue(func() { s.refresh(sub, true) })
	s.mu.Unlock()

	s.dispatch.drain()

	return func() {
		sub.closed.Store(true)
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
	}, nil
}

// refresh runs on the dispatch queue. Unforced refreshes skip snapshots identical to the last
// one delivered to sub.
func (s *SQLite) refresh(sub *subscription, force bool) {
	if sub.closed.Load() {
		return
	}
	docs, err := s.query(context.Background(), sub.query)
	if err != nil {
		s.log.Warn("snapshot query failed", "query", sub.query.String(), "err", err)
		sub.fail(err)
		return
	}
	sig := signature(docs)
	if !force && sig == sub.last {
		return
	}
	sub.last = sig
	sub.deliver(docs)
}

func signature(docs []Doc) string {
	b, err := json.Marshal(docs)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *SQLite) notify(collection string) {
	s.mu.Lock()
	for i := int64(1); i <= s.nextSub; i++ {
		sub, ok := s.subs[i]
		if !ok || !sub.query.Matches(collection) {
			continue
		}
		s.dispatch.enqueue(func() { s.refresh(sub, true) })
	}
	s.mu.Unlock()
	s.dispatch.drain()
}

func (s *SQLite) refreshAll() {
	s.mu.Lock()
	for i := int64(1); i <= s.nextSub; i++ {
		if sub, ok := s.subs[i]; ok {
			s.dispatch.enqueue(func() { s.refresh(sub, false) })
		}
	}
	s.mu.Unlock()
	s.dispatch.drain()
}

// startPoll watches PRAGMA data_version on a dedicated connection; the value changes whenever
// another connection commits.
func (s *SQLite) startPoll(interval time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.db.Conn(ctx)
	if err != nil {
		cancel()
		return err
	}
	var last int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version;").Scan(&last); err != nil {
		_ = conn.Close()
		cancel()
		return err
	}
	s.stopPoll = cancel
	s.pollDone = make(chan struct{})
	go func() {
		defer close(s.pollDone)
		defer conn.Close()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			var v int64
			if err := conn.QueryRowContext(ctx, "PRAGMA data_version;").Scan(&v); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("data_version poll failed", "path", s.path, "err", err)
				}
				continue
			}
			if v != last {
				last = v
				s.refreshAll()
			}
		}
	}()
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.closed.Store(true)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if s.stopPoll != nil {
		s.stopPoll()
		<-s.pollDone
	}
	return s.db.Close()
}
