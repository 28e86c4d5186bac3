package repository

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AccessRepository - интерфейс проверок отношений поставщика с закупкой.
type AccessRepository interface {
	IsInvited(ctx context.Context, bidID string, provider models.Subscriber) (bool, error)
	IsAssigned(ctx context.Context, owner models.Owner, provider models.Subscriber) (bool, error)
	InviteProviders(ctx context.Context, bidID string, providers []models.Subscriber) (int, error)
	MatchingProviders(ctx context.Context, regions []string) ([]models.Subscriber, error)
}

// PostgresAccessRepository - реализация AccessRepository для базы данных.
type PostgresAccessRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresAccessRepository создает новый экземпляр PostgresAccessRepository.
func NewPostgresAccessRepository(db *pgxpool.Pool) *PostgresAccessRepository {
	return &PostgresAccessRepository{DB: db}
}

// IsInvited проверяет, приглашен ли поставщик к закрытой закупке.
func (r *PostgresAccessRepository) IsInvited(ctx context.Context, bidID string, provider models.Subscriber) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM bid_invitation
	          WHERE bid_id = $1 AND provider_kind = $2 AND provider_id = $3)`
	err := r.DB.QueryRow(ctx, query, bidID, provider.Kind, provider.ID).Scan(&exists)
	return exists, err
}

// IsAssigned проверяет, закреплен ли поставщик за публикующей сущностью.
func (r *PostgresAccessRepository) IsAssigned(ctx context.Context, owner models.Owner, provider models.Subscriber) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM provider_assignment
	          WHERE owner_kind = $1 AND owner_id = $2 AND provider_kind = $3 AND provider_id = $4)`
	err := r.DB.QueryRow(ctx, query, owner.Kind, owner.ID, provider.Kind, provider.ID).Scan(&exists)
	return exists, err
}

// InviteProviders пакетно добавляет приглашения; повторы игнорируются.
func (r *PostgresAccessRepository) InviteProviders(ctx context.Context, bidID string, providers []models.Subscriber) (int, error) {
	query := `INSERT INTO bid_invitation (bid_id, provider_kind, provider_id, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (bid_id, provider_kind, provider_id) DO NOTHING`
	invited := 0
	for _, provider := range providers {
		tag, err := r.DB.Exec(ctx, query, bidID, provider.Kind, provider.ID)
		if err != nil {
			return invited, err
		}
		invited += int(tag.RowsAffected())
	}
	return invited, nil
}

// MatchingProviders возвращает поставщиков, работающих в указанных регионах.
func (r *PostgresAccessRepository) MatchingProviders(ctx context.Context, regions []string) ([]models.Subscriber, error) {
	query := `SELECT DISTINCT provider_kind, provider_id FROM provider_profile WHERE region = ANY($1)`
	rows, err := r.DB.Query(ctx, query, regions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []models.Subscriber
	for rows.Next() {
		var provider models.Subscriber
		if err := rows.Scan(&provider.Kind, &provider.ID); err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}
