package database

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := mysqlDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig(cfg))
}

// mysqlDSN builds a go-sql-driver DSN. Times are parsed in UTC and the
// connection uses utf8mb4 unless cfg.Options says otherwise. The result is
// round-tripped through the driver's parser so invalid options fail here
// instead of on first connect.
func mysqlDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := gomysql.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}

	host, port, err := serverTarget(cfg, "mysql", "127.0.0.1", 3306)
	if err != nil {
		return "", err
	}

	base := gomysql.NewConfig()
	base.User = cfg.User
	base.Passwd = cfg.Password
	base.Net = "tcp"
	base.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	base.DBName = cfg.Name
	base.ParseTime = true
	base.Params = map[string]string{"charset": "utf8mb4"}

	// parseTime and charset guarantee FormatDSN already opened a query string.
	dsn := base.FormatDSN()
	keys := make([]string, 0, len(cfg.Options))
	for key := range cfg.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		dsn += "&" + key + "=" + url.QueryEscape(cfg.Options[key])
	}

	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql dsn: %w", err)
	}
	return parsed.FormatDSN(), nil
}
