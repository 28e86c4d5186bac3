package repository

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReviewLogRepository - интерфейс append-only журнала решений администратора.
// Записи добавляет транзакция смены статуса; здесь только чтение.
type ReviewLogRepository interface {
	ListEntries(ctx context.Context, entityID string) ([]models.ReviewLogEntry, error)
}

// PostgresReviewLogRepository - реализация ReviewLogRepository для базы данных.
type PostgresReviewLogRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresReviewLogRepository создает новый экземпляр PostgresReviewLogRepository.
func NewPostgresReviewLogRepository(db *pgxpool.Pool) *PostgresReviewLogRepository {
	return &PostgresReviewLogRepository{DB: db}
}

// ListEntries возвращает записи аудита по сущности.
func (r *PostgresReviewLogRepository) ListEntries(ctx context.Context, entityID string) ([]models.ReviewLogEntry, error) {
	query := `SELECT id, entity_id, request_type, outcome, reason, created_at
	          FROM review_log WHERE entity_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ReviewLogEntry
	for rows.Next() {
		var entry models.ReviewLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.EntityID,
			&entry.RequestType,
			&entry.Outcome,
			&entry.Reason,
			&entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
