// 包 utils：数据库/Redis 连接与证书工具，统一环境变量读取
package utils

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver：存储后端，对应 DB_DRIVER
type Driver string

const (
	Postgres Driver = "postgres"
	SQLite   Driver = "sqlite"
)

// ParseDriver：空值默认 postgres；pg / postgresql / sqlite3 为别名
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown DB_DRIVER %q", s)
}

func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	db := os.Getenv("PG_DB")
	if db == "" {
		db = "screening"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "disable"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open(string(Postgres), BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen := 20
	maxIdle := 10
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxOpen = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			maxIdle = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

// 文档注释：打开本地 SQLite 文件
// 背景：离线或单机部署时无需 PostgreSQL；驱动为纯 Go 实现，无需 cgo。
// 约束：写入串行化，连接池上限为 1；自动创建父目录；开启 WAL 与 busy_timeout。
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = filepath.Join("data", "db", "screening.db")
	}
	if path != ":memory:" {
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	db, err := sql.Open(string(SQLite), path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenFromEnv：按 DB_DRIVER 打开数据库；SQLite 路径取 SQLITE_PATH
func OpenFromEnv() (*sql.DB, Driver, error) {
	d, err := ParseDriver(os.Getenv("DB_DRIVER"))
	if err != nil {
		return nil, "", err
	}
	if d == SQLite {
		db, err := OpenSQLite(os.Getenv("SQLITE_PATH"))
		return db, d, err
	}
	db, err := OpenPostgresFromEnv()
	return db, d, err
}
