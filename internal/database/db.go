// Package database はデータベース接続とマイグレーション管理を提供する。
//
// DATABASE_URLのスキームでドライバを切り替える:
//   - sqlite://<path>   … modernc.org/sqlite（既定。単一ファイル、単一接続）
//   - postgres://...    … lib/pq
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect はSQL方言を表す。
type Dialect string

const (
	// DialectSQLite はSQLite方言。
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres はPostgreSQL方言。
	DialectPostgres Dialect = "postgres"
)

// sqlitePragmas はSQLite接続ごとに適用するPRAGMA。
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DB は*sql.DBと、そのクエリを書くべきSQL方言の組。
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Target はDATABASE_URLを解析した結果。
type Target struct {
	Dialect Dialect
	// DSN はsql.Openに渡す接続文字列。
	DSN string
	// Path はSQLiteのファイルパス。PostgreSQLでは空。
	Path string
}

// ParseURL はDATABASE_URLから方言と接続文字列を求める。
func ParseURL(databaseURL string) (Target, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Target{Dialect: DialectPostgres, DSN: databaseURL}, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return Target{}, fmt.Errorf("sqlite database path is empty")
		}
		return Target{Dialect: DialectSQLite, DSN: path + "?" + sqlitePragmas, Path: path}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// ensureDir はSQLiteファイルの親ディレクトリを作成する。
func (t Target) ensureDir() error {
	if t.Dialect != DialectSQLite {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// Open はDATABASE_URLに応じたデータベース接続を開く。
// SQLiteの場合は親ディレクトリを作成し、接続数を1に制限する（単一の共有接続）。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*DB, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	if err := target.ensureDir(); err != nil {
		return nil, err
	}

	db, err := sql.Open(string(target.Dialect), target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if target.Dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}

	return &DB{DB: db, Dialect: target.Dialect}, nil
}

// Rebind は?プレースホルダで書かれたクエリを方言に合わせて書き換える。
// PostgreSQLでは$1, $2, ...に置換し、SQLiteではそのまま返す。
func (d *DB) Rebind(query string) string {
	return Rebind(d.Dialect, query)
}

// Rebind は?プレースホルダを指定方言の形式に書き換える。
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
