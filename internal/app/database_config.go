package app

import (
	"strings"

	"github.com/charlesng35/skybook/internal/database"
)

// DatabaseOptions converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) DatabaseOptions() database.Config {
	return database.Config{
		Driver:             strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:               strings.TrimSpace(c.Path),
		DSN:                strings.TrimSpace(c.DSN),
		Host:               strings.TrimSpace(c.Host),
		Port:               c.Port,
		User:               strings.TrimSpace(c.Username),
		Password:           c.Password,
		Name:               strings.TrimSpace(c.Name),
		Options:            c.Options,
		MaxOpenConns:       c.MaxOpenConns,
		MaxIdleConns:       c.MaxIdleConns,
		ConnMaxLifetime:    c.ConnMaxLifetime,
		SlowQueryThreshold: c.SlowQueryThreshold,
	}
}
