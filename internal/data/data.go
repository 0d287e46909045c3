package data

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/guoxiaopeng875/txscope/internal/biz"
	"github.com/guoxiaopeng875/txscope/internal/conf"
	"github.com/guoxiaopeng875/txscope/internal/metrics"
	"github.com/guoxiaopeng875/txscope/pkg/orm"
	"github.com/guoxiaopeng875/txscope/pkg/pgxdriver"
	"github.com/guoxiaopeng875/txscope/pkg/sqldriver"
	"github.com/guoxiaopeng875/txscope/pkg/txscope"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData, NewTransaction, NewUnitOfWorkFactory, NewDatabaseProber,
)

// database is one resolved named database.
type database struct {
	driver txscope.Driver
	gorm   *gorm.DB // mysql only
}

// Data is the data layer dependency container.
type Data struct {
	def       string
	databases map[string]*database
	metrics   *metrics.Registry
	logger    log.Logger
	log       *log.Helper
}

// NewData opens every configured database and returns a cleanup function.
func NewData(c *conf.Data, reg *metrics.Registry, logger log.Logger) (*Data, func(), error) {
	logHelper := log.NewHelper(log.With(logger, "module", "data"))

	if c == nil || len(c.Databases) == 0 {
		return nil, nil, txscope.ErrConfiguration.WithMetadata(map[string]string{"detail": "no databases configured"})
	}
	c.ApplyEnv()

	databases := make(map[string]*database, len(c.Databases))
	var closers []func()
	cleanup := func() {
		logHelper.Info("closing the data resources")
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for name, dc := range c.Databases {
		db, closer, err := openDatabase(name, dc, logHelper)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		databases[name] = db
		closers = append(closers, closer)
	}

	d, err := newData(c.Default, databases, reg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

func newData(def string, databases map[string]*database, reg *metrics.Registry, logger log.Logger) (*Data, error) {
	if def == "" && len(databases) == 1 {
		for name := range databases {
			def = name
		}
	}
	if _, ok := databases[def]; !ok {
		return nil, txscope.ErrConfiguration.WithMetadata(map[string]string{
			"detail":   "default database is not configured",
			"database": def,
		})
	}
	return &Data{
		def:       def,
		databases: databases,
		metrics:   reg,
		logger:    logger,
		log:       log.NewHelper(log.With(logger, "module", "data")),
	}, nil
}

func openDatabase(name string, dc *conf.Database, logHelper *log.Helper) (*database, func(), error) {
	if dc == nil || dc.DSN == "" {
		return nil, nil, txscope.ErrConfiguration.WithMetadata(map[string]string{
			"detail":   "connection string is empty",
			"database": name,
		})
	}

	switch dc.Provider {
	case conf.ProviderMySQL:
		ormDB, err := orm.Open(&orm.DBConfig{
			DSN:             dc.DSN,
			MaxOpenConns:    int(dc.MaxOpenConns),
			MaxIdleConns:    int(dc.MaxIdleConns),
			ConnMaxLifetime: dc.ConnMaxLifetime.Duration,
			ConnMaxIdleTime: dc.ConnMaxIdleTime.Duration,
			Silent:          true,
		})
		if err != nil {
			return nil, nil, txscope.ErrConfiguration.WithCause(err).WithMetadata(map[string]string{"database": name})
		}
		closer := func() {
			if err := ormDB.Close(); err != nil {
				logHelper.Errorf("failed to close database %s: %v", name, err)
			}
		}
		return &database{driver: sqldriver.New(ormDB.SQL()), gorm: ormDB.Gorm()}, closer, nil

	case conf.ProviderPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := pgxdriver.NewPool(ctx, pgxdriver.PoolConfig{
			DSN:             dc.DSN,
			MaxConns:        dc.MaxOpenConns,
			MinConns:        dc.MaxIdleConns,
			MaxConnLifetime: dc.ConnMaxLifetime.Duration,
			MaxConnIdleTime: dc.ConnMaxIdleTime.Duration,
		})
		if err != nil {
			return nil, nil, txscope.ErrConfiguration.WithCause(err).WithMetadata(map[string]string{"database": name})
		}
		return &database{driver: pgxdriver.New(pool)}, pool.Close, nil

	default:
		return nil, nil, txscope.ErrConfiguration.WithMetadata(map[string]string{
			"detail":   fmt.Sprintf("unknown provider %q", dc.Provider),
			"database": name,
		})
	}
}

// Names returns the configured database names, sorted.
func (d *Data) Names() []string {
	names := make([]string, 0, len(d.databases))
	for name := range d.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Driver returns the driver of the named database.
func (d *Data) Driver(name string) (txscope.Driver, error) {
	db, err := d.database(name)
	if err != nil {
		return nil, err
	}
	return db.driver, nil
}

// NewManager returns a fresh scope manager for the named database.
func (d *Data) NewManager(name string) (*txscope.Manager, error) {
	db, err := d.database(name)
	if err != nil {
		return nil, err
	}
	opts := []txscope.Option{txscope.WithLogger(log.With(d.logger, "database", name))}
	if d.metrics != nil {
		opts = append(opts, txscope.WithHooks(d.metrics.Hooks(name)))
	}
	return txscope.NewManager(db.driver, opts...), nil
}

func (d *Data) database(name string) (*database, error) {
	db, ok := d.databases[name]
	if !ok {
		return nil, txscope.ErrConfiguration.WithMetadata(map[string]string{
			"detail":   "database is not configured",
			"database": name,
		})
	}
	return db, nil
}

// NewTransaction returns a biz.Transaction backed by Data.
func NewTransaction(d *Data) biz.Transaction {
	return d
}

// NewUnitOfWorkFactory returns a biz.UnitOfWorkFactory backed by Data.
func NewUnitOfWorkFactory(d *Data) biz.UnitOfWorkFactory {
	return d
}

// NewDatabaseProber returns a biz.DatabaseProber backed by Data.
func NewDatabaseProber(d *Data) biz.DatabaseProber {
	return d
}
