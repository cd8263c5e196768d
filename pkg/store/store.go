package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect はSQL方言（＝database/sqlのドライバ名）を表す。
type Dialect string

const (
	// DialectSQLite はmodernc.org/sqliteドライバを表す。プレースホルダは "?"。
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres はpgxドライバを表す。プレースホルダは "$1", "$2", ...。
	DialectPostgres Dialect = "pgx"
)

// ParseDialect はドライバ名をDialectに変換する。
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("未対応のデータベースドライバ: %q", driver)
	}
}

// Querier はSQLの実行口を表す。DB（コネクションプール）とトランザクションの両方が満たす。
// すべてのクエリは "?" プレースホルダで記述し、方言への変換は実装側が行う。
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Dialect() Dialect
}

// execer は*sql.DBと*sql.Txに共通するメソッド集合。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn はexecerにプレースホルダ変換を被せたQuerier実装。
type conn struct {
	e       execer
	dialect Dialect
}

func (c conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.e.ExecContext(ctx, Rebind(c.dialect, query), args...)
}

func (c conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.e.QueryContext(ctx, Rebind(c.dialect, query), args...)
}

func (c conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.e.QueryRowContext(ctx, Rebind(c.dialect, query), args...)
}

func (c conn) Dialect() Dialect { return c.dialect }

// DB はアプリケーションが明示的に受け渡すストアハンドル。
type DB struct {
	conn
	// sqlDB は下層のコネクションプール。
	sqlDB *sql.DB
}

// SQLiteBusyTimeout はファイルSQLiteでロック解放を待つ時間（ミリ秒）。
const SQLiteBusyTimeout = 5000

// Open はドライバ名とDSNからストアハンドルを生成する。
// インメモリSQLiteはコネクションごとに別DBになるため、接続数を1に固定する。
// ファイルSQLiteのDSNにはSQLiteDSNで待機時間とトランザクションのロック方式を補う。
func Open(driver, dsn string) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		dsn = SQLiteDSN(dsn)
	}

	sqlDB, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dialect == DialectSQLite && isSQLiteMemory(dsn) {
		sqlDB.SetMaxOpenConns(1)
	}
	return New(sqlDB, dialect), nil
}

// SQLiteDSN はファイルSQLiteのDSNにbusy_timeoutと_txlock=immediateがなければ追加する。
// 書き込みトランザクションは開始時に書き込みロックを取り、競合時はbusy_timeoutまで待つ。
// インメモリDBのDSNはそのまま返す。
func SQLiteDSN(dsn string) string {
	if isSQLiteMemory(dsn) {
		return dsn
	}
	var params []string
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout("+strconv.Itoa(SQLiteBusyTimeout)+")")
	}
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	switch {
	case strings.HasSuffix(dsn, "?"), strings.HasSuffix(dsn, "&"):
		sep = ""
	case strings.Contains(dsn, "?"):
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isSQLiteMemory(dsn string) bool {
	return dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// New は既存の*sql.DBからストアハンドルを生成する。テストでsqlmockを差し込む際に使う。
func New(sqlDB *sql.DB, dialect Dialect) *DB {
	return &DB{conn: conn{e: sqlDB, dialect: dialect}, sqlDB: sqlDB}
}

// SQL は下層の*sql.DBを返す。マイグレーションやヘルスチェックで使用する。
func (db *DB) SQL() *sql.DB {
	return db.sqlDB
}

// Ping はデータベースへの疎通を確認する。
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// Close はコネクションプールを閉じる。
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// Rebind は "?" プレースホルダを方言に合わせて書き換える。
// 文字列リテラル内の "?" は扱わないため、クエリ中にリテラルの "?" を書かないこと。
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// IsConstraintViolation はエラーがストアの制約違反（一意制約・外部キー・NOT NULL等）かどうかを判定する。
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// クラス23: integrity_constraint_violation
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
