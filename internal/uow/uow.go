package uow

import (
	"context"

	"github.com/kirinyoku/bus-go/internal/repository"
)

// AfterCommit is a function that runs after a successful commit.
type AfterCommit func(ctx context.Context)

// UoW represents a unit of work.
type UoW struct {
	tx repository.Transactor
}

func New(tx repository.Transactor) *UoW {
	return &UoW{tx: tx}
}

// Do runs fn inside the unit of work. After a successful commit it executes
// the hooks registered by the attempt that committed; hooks registered by a
// retried attempt are discarded.
func (u *UoW) Do(
	ctx context.Context,
	fn func(ctx context.Context, tx *repository.Store, after func(AfterCommit)) error,
) error {
	var hooks []AfterCommit

	err := u.tx.WithinTx(ctx, func(ctx context.Context, tx *repository.Store) error {
		hooks = hooks[:0]
		return fn(ctx, tx, func(h AfterCommit) {
			hooks = append(hooks, h)
		})
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}
