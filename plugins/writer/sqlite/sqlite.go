// Package sqlite 把工件按 ArtifactID 存入单个 SQLite 文件（纯 Go 驱动，无 cgo）。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"drumcoder/pkg/contract"
)

// DefaultFile: 仅给出 output_dir 时的数据库文件名。
const DefaultFile = "drumcoder.db"

// Options: SQLite Writer 选项。path 与 output_dir 至少其一。
type Options struct {
	// Path: 数据库文件路径；为空时取 <output_dir>/drumcoder.db。
	Path      string `json:"path,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	// Table: 表名，缺省 artifacts。
	Table string `json:"table,omitempty"`
	// BusyTimeoutMS: 写锁等待；<=0 使用 5000。
	BusyTimeoutMS int `json:"busy_timeout_ms,omitempty"`
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store 实现 contract.Writer；同一 id 再次写入时整体替换。
type Store struct {
	db    *sql.DB
	path  string
	table string
}

var _ contract.Writer = (*Store)(nil)

// New 打开（必要时创建）数据库并建表。
func New(opts *Options) (*Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: sqlite writer options are required", contract.ErrConfiguration)
	}
	p := strings.TrimSpace(opts.Path)
	if p == "" {
		dir := strings.TrimSpace(opts.OutputDir)
		if dir == "" {
			return nil, fmt.Errorf("%w: sqlite writer needs path or output_dir", contract.ErrConfiguration)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		p = filepath.Join(dir, DefaultFile)
	}
	table := opts.Table
	if table == "" {
		table = "artifacts"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid sqlite table name %q", contract.ErrConfiguration, table)
	}
	busy := opts.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", filepath.ToSlash(p), busy))
	if err != nil {
		return nil, err
	}
	// 单连接：SQLite 写入串行，避免 database is locked
	db.SetMaxOpenConns(1)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	size INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`, table)
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init %s: %w", p, err)
	}
	return &Store{db: db, path: p, table: table}, nil
}

// Path 返回数据库文件路径。
func (s *Store) Path() string { return s.path }

// Close 关闭数据库连接。
func (s *Store) Close() error { return s.db.Close() }

// key: 正斜杠 Clean；拒绝空、绝对与父级逃逸。
func key(id contract.ArtifactID) (string, error) {
	raw := strings.ReplaceAll(string(id), "\\", "/")
	k := path.Clean(raw)
	switch {
	case raw == "" || k == ".":
		return "", fmt.Errorf("%w: empty artifact id", contract.ErrPathInvalid)
	case path.IsAbs(k) || filepath.VolumeName(string(id)) != "":
		return "", fmt.Errorf("%w: absolute artifact id %q", contract.ErrPathInvalid, id)
	case k == ".." || strings.HasPrefix(k, "../"):
		return "", fmt.Errorf("%w: artifact id %q escapes store", contract.ErrPathInvalid, id)
	}
	return k, nil
}

// Write 读完 r 后在单个事务内 upsert；读取途中 ctx 取消则不落库。
func (s *Store) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := key(id)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, body, size, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET body = excluded.body, size = excluded.size, updated_at = excluded.updated_at`, s.table)
	if _, err := tx.ExecContext(ctx, q, k, body, len(body), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Read 返回已存工件；不存在时返回 os.ErrNotExist。
func (s *Store) Read(ctx context.Context, id contract.ArtifactID) ([]byte, error) {
	k, err := key(id)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT body FROM %s WHERE id = ?`, s.table), k).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %q: %w", k, os.ErrNotExist)
	}
	return body, err
}

// List 按 id 升序列出全部工件。
func (s *Store) List(ctx context.Context) ([]contract.ArtifactID, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []contract.ArtifactID
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		ids = append(ids, contract.ArtifactID(k))
	}
	return ids, rows.Err()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
