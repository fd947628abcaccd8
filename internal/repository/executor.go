package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/gradestore/pkg/middleware/requestid"
)

// OperationObserver receives the outcome of every store operation.
type OperationObserver interface {
	ObserveStoreOperation(op string, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStoreOperation(string, time.Duration, error) {}

// executor runs store operations, one transaction per write call.
type executor struct {
	db       *sqlx.DB
	logger   *zap.Logger
	observer OperationObserver
}

func newExecutor(db *sqlx.DB, logger *zap.Logger, observer OperationObserver) *executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &executor{db: db, logger: logger, observer: observer}
}

// inTx runs fn in a transaction. Any error rolls the whole transaction back and is
// classified as a constraint violation or a storage fault. Callbacks queued on the
// commitHooks run only after a successful commit.
func (e *executor) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx, hooks *commitHooks) error) (err error) {
	start := time.Now()
	defer func() { e.observer.ObserveStoreOperation(op, time.Since(start), err) }()

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		err = classify(op, err)
		e.log(ctx).Warn("store begin failed", zap.String("op", op), zap.Error(err))
		return err
	}

	hooks := &commitHooks{}
	if err = fn(tx, hooks); err != nil {
		tx.Rollback() //nolint:errcheck
		err = classify(op, err)
		e.log(ctx).Warn("store transaction rolled back", zap.String("op", op), zap.Error(err))
		return err
	}

	if err = tx.Commit(); err != nil {
		err = classify(op, err)
		e.log(ctx).Warn("store commit failed", zap.String("op", op), zap.Error(err))
		return err
	}

	hooks.run()
	e.log(ctx).Debug("store write committed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// read runs a query outside a transaction. Read failures are always storage faults.
func (e *executor) read(ctx context.Context, op string, fn func(q sqlx.QueryerContext) error) (err error) {
	start := time.Now()
	defer func() { e.observer.ObserveStoreOperation(op, time.Since(start), err) }()

	if err = fn(e.db); err != nil {
		err = &StorageFaultError{Op: op, Err: err}
		return err
	}
	return nil
}

// log tags entries with the request that triggered the operation, when there is one.
func (e *executor) log(ctx context.Context) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return e.logger.With(zap.String("request_id", id))
	}
	return e.logger
}

func (e *executor) rebind(query string) string {
	return e.db.Rebind(query)
}

// commitHooks holds in-memory updates that must only become visible once the
// transaction has committed.
type commitHooks struct {
	fns []func()
}

func (h *commitHooks) add(fn func()) {
	h.fns = append(h.fns, fn)
}

func (h *commitHooks) run() {
	for _, fn := range h.fns {
		fn()
	}
}

// insertID inserts a row and returns its generated id. Both drivers accept RETURNING.
func insertID(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	var id int64
	if err := tx.QueryRowxContext(ctx, tx.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// updateOne runs an update that must touch exactly one existing row.
func updateOne(ctx context.Context, tx *sqlx.Tx, entity string, id int64, query string, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return constraintf(KindMissingRow, "%s %d does not exist", entity, id)
	}
	return nil
}

func exec(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

// unique drops repeated entities from a batch: the same pointer twice, or two values with
// the same non-zero identity. The first occurrence wins.
func unique[T any](items []*T, id func(*T) int64) []*T {
	seenPtr := make(map[*T]struct{}, len(items))
	seenID := make(map[int64]struct{}, len(items))
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := seenPtr[item]; ok {
			continue
		}
		seenPtr[item] = struct{}{}
		if key := id(item); key != 0 {
			if _, ok := seenID[key]; ok {
				continue
			}
			seenID[key] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}
