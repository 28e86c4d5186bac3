package repository

import (
	"context"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository - интерфейс доступа к общим настройкам платформы.
type SettingsRepository interface {
	GetGeneralSettings(ctx context.Context) (*models.GeneralSettings, error)
}

// PostgresSettingsRepository - реализация SettingsRepository для базы данных.
type PostgresSettingsRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresSettingsRepository создает новый экземпляр PostgresSettingsRepository.
func NewPostgresSettingsRepository(db *pgxpool.Pool) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{DB: db}
}

// GetGeneralSettings возвращает общие настройки платформы.
func (r *PostgresSettingsRepository) GetGeneralSettings(ctx context.Context) (*models.GeneralSettings, error) {
	query := `SELECT vat_percentage, platform_fee_percentage, min_document_price, max_document_price, stopping_period_days
	          FROM general_settings WHERE id = 1`
	var settings models.GeneralSettings
	err := r.DB.QueryRow(ctx, query).Scan(
		&settings.VatPercentage,
		&settings.PlatformFeePercentage,
		&settings.MinDocumentPrice,
		&settings.MaxDocumentPrice,
		&settings.StoppingPeriodDays,
	)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
