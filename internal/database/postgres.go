package database

import (
	"sort"
	"strconv"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Session defaults for the postgres pool. Flight timestamps are stored in UTC
// so the session time zone is pinned to match.
var postgresDefaults = map[string]string{
	"sslmode":          "disable",
	"TimeZone":         "UTC",
	"application_name": "skybook",
}

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig(cfg))
}

// postgresDSN renders cfg as a libpq keyword/value string. Options override
// the session defaults but never the connection target.
func postgresDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	host, port, err := serverTarget(cfg, "postgres", "localhost", 5432)
	if err != nil {
		return "", err
	}

	settings := make(map[string]string, len(postgresDefaults)+len(cfg.Options)+5)
	for key, value := range postgresDefaults {
		settings[key] = value
	}
	for key, value := range cfg.Options {
		if key = strings.TrimSpace(key); key != "" {
			settings[key] = value
		}
	}
	settings["host"] = host
	settings["port"] = strconv.Itoa(port)
	settings["user"] = cfg.User
	settings["dbname"] = cfg.Name
	if cfg.Password != "" {
		settings["password"] = cfg.Password
	}

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+quotePostgresValue(settings[key]))
	}
	return strings.Join(pairs, " "), nil
}

// quotePostgresValue single-quotes values libpq would otherwise split or
// misread, escaping backslashes and quotes.
func quotePostgresValue(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\n'\\") {
		return value
	}
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(value) + "'"
}
