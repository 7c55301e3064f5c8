package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// CleanupService removes question feedback rows left behind by evaluation
// attempts that never persisted their round feedback.
type CleanupService struct {
	Pool      PgxPool
	Retention time.Duration
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(pool PgxPool, retention time.Duration) *CleanupService {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &CleanupService{Pool: pool, Retention: retention}
}

// PurgeOrphanedQuestionFeedback deletes rows older than the retention period
// whose evaluation id does not match the round's persisted feedback.
func (s *CleanupService) PurgeOrphanedQuestionFeedback(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("repo.cleanup").Start(ctx, "cleanup.PurgeOrphanedQuestionFeedback")
	defer span.End()
	cutoff := time.Now().UTC().Add(-s.Retention)

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("cleanup begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM question_feedback q
		WHERE q.created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM round_feedback f
			WHERE f.round_id = q.round_id AND f.evaluation_id = q.evaluation_id
		)
	`, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("cleanup delete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("cleanup commit: %w", err)
	}
	deleted := tag.RowsAffected()
	span.SetAttributes(attribute.Int64("question_feedback.deleted", deleted))
	if deleted > 0 {
		slog.Info("purged orphaned question feedback",
			slog.Int64("deleted_rows", deleted),
			slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}
