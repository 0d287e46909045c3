package biz

import "context"

// Transaction is the interface for managing database transactions.
// Defined in biz layer, implemented by data/infra layer.
//
// Calls nest: an InTx inside another InTx joins the outer unit of work, and
// the work commits only if every level returns nil.
type Transaction interface {
	InTx(context.Context, func(ctx context.Context) error) error
}

// UnitOfWork is an explicit unit of work for code that cannot be written as
// a closure. It begins on creation; SaveChanges votes to commit, and Close
// without SaveChanges rolls the whole unit back.
//
//	ctx, uow, err := uows.Begin(ctx)
//	if err != nil {
//		return err
//	}
//	defer uow.Close()
//	// ... repositories use ctx ...
//	return uow.SaveChanges(ctx)
type UnitOfWork interface {
	SaveChanges(ctx context.Context) error
	Close() error
}

// UnitOfWorkFactory begins units of work. The returned context carries the
// unit and must be passed to the code taking part in it.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (context.Context, UnitOfWork, error)
}

// DatabaseProber checks that configured databases accept transactions.
type DatabaseProber interface {
	// Names returns the configured database names, sorted.
	Names() []string
	// Probe runs an empty transaction against the named database.
	Probe(ctx context.Context, name string) error
}
