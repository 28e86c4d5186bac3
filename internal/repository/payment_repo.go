package repository

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PaymentRepository - интерфейс платежного реестра; им пользуются
// и запрет на изменение цены, и проверка квоты раскрытий.
type PaymentRepository interface {
	HasConfirmedPurchase(ctx context.Context, bidID string, buyer models.Subscriber) (bool, error)
	HasAnyConfirmedPurchase(ctx context.Context, bidID string) (bool, error)
}

// PostgresPaymentRepository - реализация PaymentRepository для базы данных.
type PostgresPaymentRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresPaymentRepository создает новый экземпляр PostgresPaymentRepository.
func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{DB: db}
}

// HasConfirmedPurchase проверяет подтвержденную покупку пакета документов покупателем.
func (r *PostgresPaymentRepository) HasConfirmedPurchase(ctx context.Context, bidID string, buyer models.Subscriber) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM document_purchase
	          WHERE bid_id = $1 AND buyer_kind = $2 AND buyer_id = $3 AND confirmed = TRUE)`
	err := r.DB.QueryRow(ctx, query, bidID, buyer.Kind, buyer.ID).Scan(&exists)
	return exists, err
}

// HasAnyConfirmedPurchase проверяет наличие хотя бы одной подтвержденной покупки по закупке.
func (r *PostgresPaymentRepository) HasAnyConfirmedPurchase(ctx context.Context, bidID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM document_purchase WHERE bid_id = $1 AND confirmed = TRUE)`
	err := r.DB.QueryRow(ctx, query, bidID).Scan(&exists)
	return exists, err
}
