package data

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/guoxiaopeng875/txscope/internal/biz"
	"github.com/guoxiaopeng875/txscope/pkg/sqldriver"
	"github.com/guoxiaopeng875/txscope/pkg/txscope"
)

var tracer = otel.Tracer("txscope/data")

// managerKey is the context key of the per-request manager of one database.
type managerKey struct {
	name string
}

// manager returns the manager of name carried by ctx, or a new one stored
// in the returned context. A manager is not safe for concurrent use, so a
// context carrying one must not be shared between goroutines.
func (d *Data) manager(ctx context.Context, name string) (*txscope.Manager, context.Context, error) {
	if m, ok := ctx.Value(managerKey{name}).(*txscope.Manager); ok {
		return m, ctx, nil
	}
	m, err := d.NewManager(name)
	if err != nil {
		return nil, ctx, err
	}
	return m, context.WithValue(ctx, managerKey{name}, m), nil
}

// InTx runs fn in a unit of work on the default database.
func (d *Data) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.InTxOn(ctx, d.def, false, fn)
}

// InTxOn runs fn in a unit of work on the named database. A call nested in
// another unit of work on the same database joins it; the real transaction
// commits only when every level returned nil. repeatableRead must agree
// with the outermost level that asked for an isolation level.
//
// A nil result means this level voted to commit, not that the transaction
// committed: if a nested level failed, the whole unit rolls back and the
// outer InTxOn still returns nil.
func (d *Data) InTxOn(ctx context.Context, name string, repeatableRead bool, fn func(ctx context.Context) error) error {
	m, ctx, err := d.manager(ctx, name)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "txscope.InTx", trace.WithAttributes(
		attribute.String("db.name", name),
		attribute.Bool("tx.nested", m.Active()),
		attribute.Bool("tx.repeatable_read", repeatableRead),
	))
	defer span.End()

	scope, err := m.CreateScope(repeatableRead)
	if err != nil {
		recordError(span, err)
		return err
	}
	// aborts on panic
	defer scope.Close()

	if err := fn(ctx); err != nil {
		if abortErr := scope.Abort(ctx); abortErr != nil {
			d.log.Errorf("failed to abort scope %s on %s: %v", scope.ID(), name, abortErr)
		}
		recordError(span, err)
		return err
	}
	if err := scope.Complete(ctx); err != nil {
		recordError(span, err)
		return err
	}
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// unitOfWork is a scope resolved by SaveChanges or, failing that, by Close.
type unitOfWork struct {
	scope *txscope.Scope
}

func (u *unitOfWork) SaveChanges(ctx context.Context) error {
	return u.scope.Complete(ctx)
}

func (u *unitOfWork) Close() error {
	return u.scope.Close()
}

// Begin starts a unit of work on the default database.
func (d *Data) Begin(ctx context.Context) (context.Context, biz.UnitOfWork, error) {
	return d.BeginOn(ctx, d.def, false)
}

// BeginOn starts a unit of work on the named database.
func (d *Data) BeginOn(ctx context.Context, name string, repeatableRead bool) (context.Context, biz.UnitOfWork, error) {
	m, ctx, err := d.manager(ctx, name)
	if err != nil {
		return ctx, nil, err
	}
	scope, err := m.CreateScope(repeatableRead)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, &unitOfWork{scope: scope}, nil
}

// Conn returns a handle on the named database. Inside a unit of work a
// participating handle shares its transaction; otherwise the handle owns a
// private connection.
func (d *Data) Conn(ctx context.Context, name string, participating bool) (*txscope.Handle, error) {
	m, ok := ctx.Value(managerKey{name}).(*txscope.Manager)
	if !ok {
		var err error
		if m, err = d.NewManager(name); err != nil {
			return nil, err
		}
	}
	return m.CreateConnection(ctx, participating)
}

// Gorm returns a gorm session running on h. Only mysql databases have one.
func (d *Data) Gorm(ctx context.Context, name string, h *txscope.Handle) (*gorm.DB, error) {
	db, err := d.database(name)
	if err != nil {
		return nil, err
	}
	if db.gorm == nil {
		return nil, txscope.ErrConfiguration.WithMetadata(map[string]string{
			"detail":   "database has no gorm session",
			"database": name,
		})
	}
	return sqldriver.Gorm(ctx, db.gorm, h)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Probe runs an empty transaction on the named database, pinging the
// connection inside it.
func (d *Data) Probe(ctx context.Context, name string) error {
	if _, err := d.database(name); err != nil {
		return err
	}
	err := d.InTxOn(ctx, name, false, func(ctx context.Context) error {
		h, err := d.Conn(ctx, name, true)
		if err != nil {
			return err
		}
		defer h.Close()
		if p, ok := h.Conn().(pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	})
	if err != nil && d.metrics != nil {
		d.metrics.ProbeFailures.WithLabelValues(name).Inc()
	}
	return err
}
