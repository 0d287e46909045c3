// Package orm opens MySQL pools and the gorm handles over them.
package orm

import (
	"database/sql"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig is the configuration for the database
type DBConfig struct {
	// DSN, when set, is used as is and the connection fields below are ignored
	DSN             string
	Username        string
	Password        string
	Host            string
	Port            string
	DBName          string
	MaxIdleConns    int
	MaxOpenConns    int
	DBCharset       string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// Silent turns off gorm's statement logging
	Silent bool
}

// getCharset returns the charset, defaulting to utf8mb4
func (c *DBConfig) getCharset() string {
	if c.DBCharset == "" {
		return "utf8mb4"
	}
	return c.DBCharset
}

// getConnMaxLifetime returns the connection max lifetime, defaulting to 1 hour
func (c *DBConfig) getConnMaxLifetime() time.Duration {
	if c.ConnMaxLifetime == 0 {
		return time.Hour
	}
	return c.ConnMaxLifetime
}

// getConnMaxIdleTime returns the connection max idle time, defaulting to 10 minutes
func (c *DBConfig) getConnMaxIdleTime() time.Duration {
	if c.ConnMaxIdleTime == 0 {
		return 10 * time.Minute
	}
	return c.ConnMaxIdleTime
}

// driverConfig returns the parsed DSN, or builds one from the connection fields.
func (c *DBConfig) driverConfig() (*mysqldrv.Config, error) {
	if c.DSN != "" {
		cfg, err := mysqldrv.ParseDSN(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("invalid mysql dsn: %w", err)
		}
		return cfg, nil
	}

	cfg := mysqldrv.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + c.Port
	cfg.DBName = c.DBName
	cfg.ParseTime = true
	cfg.Loc = time.Local
	cfg.Params = map[string]string{"charset": c.getCharset()}
	return cfg, nil
}

// DB is a MySQL pool with a gorm handle over it. gorm never opens
// transactions of its own on it.
type DB struct {
	gorm *gorm.DB
	sql  *sql.DB
}

// Open opens the pool and pings it through gorm.
func Open(c *DBConfig) (*DB, error) {
	cfg, err := c.driverConfig()
	if err != nil {
		return nil, err
	}
	connector, err := mysqldrv.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connector: %w", err)
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxIdleConns(c.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.getConnMaxLifetime())
	sqlDB.SetConnMaxIdleTime(c.getConnMaxIdleTime())

	gormConfig := &gorm.Config{SkipDefaultTransaction: true}
	if c.Silent {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}
	return &DB{gorm: gormDB, sql: sqlDB}, nil
}

// Gorm returns the gorm handle.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// SQL returns the pool gorm runs on.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Close closes the pool.
func (d *DB) Close() error {
	if d.sql == nil {
		return nil
	}
	return d.sql.Close()
}
