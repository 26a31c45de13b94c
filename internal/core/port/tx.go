package port

import "context"

// Repositories is the set of stores bound to a single transaction.
type Repositories struct {
	Users  UserRepository
	Outbox OutboxRepository
}

// Transactor runs fn inside a database transaction, committing when fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
