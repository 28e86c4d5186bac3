package repository

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository - интерфейс очереди доменных событий. События пишутся
// в TransitionBid одной транзакцией со сменой статуса; диспетчер забирает
// их уже после коммита, поэтому сбой доставки не откатывает переход.
type OutboxRepository interface {
	Append(ctx context.Context, events []models.OutboxEvent) error
	PendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkDispatched(ctx context.Context, eventID string) error
	MarkFailed(ctx context.Context, eventID string, maxAttempts int) error
}

// PostgresOutboxRepository - реализация OutboxRepository для базы данных.
type PostgresOutboxRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresOutboxRepository создает новый экземпляр PostgresOutboxRepository.
func NewPostgresOutboxRepository(db *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{DB: db}
}

// Append добавляет события вне транзакции смены статуса; используется
// рабочими процессами для сигналов о завершении.
func (r *PostgresOutboxRepository) Append(ctx context.Context, events []models.OutboxEvent) error {
	query := `INSERT INTO outbox_event (id, event_type, payload, status, attempts, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	for _, event := range events {
		if _, err := r.DB.Exec(ctx, query,
			event.ID, event.EventType, event.Payload, event.Status, event.Attempts, event.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// PendingEvents возвращает недоставленные события в порядке создания.
func (r *PostgresOutboxRepository) PendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT id, event_type, payload, status, attempts, created_at,
	          COALESCE(dispatched_at, 'epoch'::timestamp)
	          FROM outbox_event WHERE status = 'pending'
	          ORDER BY created_at
	          LIMIT $1`
	rows, err := r.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var event models.OutboxEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Payload,
			&event.Status,
			&event.Attempts,
			&event.CreatedAt,
			&event.DispatchedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkDispatched помечает событие доставленным.
func (r *PostgresOutboxRepository) MarkDispatched(ctx context.Context, eventID string) error {
	_, err := r.DB.Exec(ctx,
		`UPDATE outbox_event SET status = 'dispatched', dispatched_at = NOW() WHERE id = $1`, eventID)
	return err
}

// MarkFailed увеличивает счетчик попыток; после maxAttempts событие
// помечается как failed и больше не выбирается.
func (r *PostgresOutboxRepository) MarkFailed(ctx context.Context, eventID string, maxAttempts int) error {
	query := `UPDATE outbox_event
	          SET attempts = attempts + 1,
	              status = CASE WHEN attempts + 1 >= $2 THEN 'failed' ELSE 'pending' END
	          WHERE id = $1`
	_, err := r.DB.Exec(ctx, query, eventID, maxAttempts)
	return err
}
