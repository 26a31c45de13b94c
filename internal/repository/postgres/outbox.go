package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/repository"
)

// OutboxRepository stores pending bus events in iam.outbox.
type OutboxRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewOutboxRepository constructs an outbox repository.
func NewOutboxRepository(exec pgExecutor) *OutboxRepository {
	return &OutboxRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithTx returns a repository executing within the provided transaction.
func (r *OutboxRepository) WithTx(tx pgx.Tx) *OutboxRepository {
	if tx == nil {
		return r
	}
	return &OutboxRepository{exec: tx, builder: r.builder, now: r.now}
}

// Enqueue inserts a message awaiting dispatch.
func (r *OutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	stmt, args, err := r.builder.Insert("iam.outbox").
		Columns("id", "event_type", "key", "payload", "created_at").
		Values(msg.ID, msg.EventType, msg.Key, []byte(msg.Payload), msg.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert outbox sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// ClaimPending selects the oldest undispatched messages and locks them, skipping rows
// already held by another dispatcher.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit uint64) ([]domain.OutboxMessage, error) {
	stmt, args, err := r.builder.Select("id", "event_type", "key", "payload", "created_at", "attempts", "last_error").
		From("iam.outbox").
		Where(squirrel.Eq{"dispatched_at": nil}).
		OrderBy("created_at ASC").
		Limit(limit).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim outbox sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		var (
			msg     domain.OutboxMessage
			payload []byte
		)
		if err := rows.Scan(&msg.ID, &msg.EventType, &msg.Key, &payload, &msg.CreatedAt, &msg.Attempts, &msg.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		msg.Payload = payload
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}

	return messages, nil
}

// MarkDispatched stamps the message as delivered to the bus.
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string) error {
	return r.update(ctx, id, map[string]any{"dispatched_at": r.now().UTC()})
}

// MarkFailed records a failed dispatch attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(ctx, id, map[string]any{
		"attempts":   squirrel.Expr("attempts + 1"),
		"last_error": reason,
	})
}

func (r *OutboxRepository) update(ctx context.Context, id string, values map[string]any) error {
	stmt, args, err := r.builder.Update("iam.outbox").
		SetMap(values).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update outbox sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update outbox message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.OutboxRepository = (*OutboxRepository)(nil)
