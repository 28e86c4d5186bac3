package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SpendResult - исход атомарного списания кредита.
type SpendResult int

const (
	// SpendOK - кредит списан, запись использования создана.
	SpendOK SpendResult = iota
	// SpendAlreadyRecorded - кредит за эту закупку был списан ранее.
	SpendAlreadyRecorded
	// SpendLimitReached - лимит исчерпан, списание не произошло.
	SpendLimitReached
)

// EntitlementRepository - интерфейс для работы с пакетами услуг и квотами.
type EntitlementRepository interface {
	ActiveGrant(ctx context.Context, subscriber models.Subscriber, now time.Time) (*models.SubscriptionGrant, error)
	PrimaryFeature(ctx context.Context, grantID string) (*models.GrantFeature, error)
	UsageExists(ctx context.Context, featureID, bidID string) (bool, error)
	SpendCredit(ctx context.Context, featureID, bidID string) (SpendResult, error)
	InsertRevealEvent(ctx context.Context, event models.RevealEvent) error
	EnsurePackageRevealEvent(ctx context.Context, event models.RevealEvent) error
	EnsurePurchaseRevealEvent(ctx context.Context, event models.RevealEvent) error
}

// PostgresEntitlementRepository - реализация EntitlementRepository для базы данных.
type PostgresEntitlementRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresEntitlementRepository создает новый экземпляр PostgresEntitlementRepository.
func NewPostgresEntitlementRepository(db *pgxpool.Pool) *PostgresEntitlementRepository {
	return &PostgresEntitlementRepository{DB: db}
}

// ActiveGrant возвращает действующий оплаченный пакет подписчика.
func (r *PostgresEntitlementRepository) ActiveGrant(ctx context.Context, subscriber models.Subscriber, now time.Time) (*models.SubscriptionGrant, error) {
	query := `SELECT id, subscriber_kind, subscriber_id, starts_at, ends_at, paid
	          FROM subscription_grant
	          WHERE subscriber_kind = $1 AND subscriber_id = $2
	            AND paid = TRUE AND starts_at <= $3 AND ends_at > $3
	          ORDER BY ends_at DESC
	          LIMIT 1`
	var grant models.SubscriptionGrant
	err := r.DB.QueryRow(ctx, query, subscriber.Kind, subscriber.ID, now).Scan(
		&grant.ID,
		&grant.SubscriberKind,
		&grant.SubscriberID,
		&grant.StartsAt,
		&grant.EndsAt,
		&grant.Paid,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grant, nil
}

// PrimaryFeature возвращает основную опцию раскрытия в пакете.
func (r *PostgresEntitlementRepository) PrimaryFeature(ctx context.Context, grantID string) (*models.GrantFeature, error) {
	query := `SELECT id, grant_id, feature_code, value_type, total, used, available
	          FROM grant_feature
	          WHERE grant_id = $1 AND feature_code = $2 AND available = TRUE`
	var feature models.GrantFeature
	err := r.DB.QueryRow(ctx, query, grantID, models.FeatureBidReveal).Scan(
		&feature.ID,
		&feature.GrantID,
		&feature.FeatureCode,
		&feature.ValueType,
		&feature.Total,
		&feature.Used,
		&feature.Available,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

// UsageExists сообщает, был ли уже списан кредит за пару (feature, bid).
func (r *PostgresEntitlementRepository) UsageExists(ctx context.Context, featureID, bidID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM feature_usage_record WHERE feature_id = $1 AND bid_id = $2)`
	err := r.DB.QueryRow(ctx, query, featureID, bidID).Scan(&exists)
	return exists, err
}

// SpendCredit выполняет атомарное "увеличить, если не достигнут лимит":
// запись использования и инкремент счетчика происходят в одной транзакции,
// неатомарная пара проверка-инкремент здесь запрещена. Сбой между проверкой
// и записью не может ни удвоить списание, ни потерять кредит.
func (r *PostgresEntitlementRepository) SpendCredit(ctx context.Context, featureID, bidID string) (SpendResult, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return SpendLimitReached, err
	}
	defer tx.Rollback(ctx)

	insertQuery := `INSERT INTO feature_usage_record (feature_id, bid_id, created_at)
	               VALUES ($1, $2, NOW())
	               ON CONFLICT (feature_id, bid_id) DO NOTHING`
	tag, err := tx.Exec(ctx, insertQuery, featureID, bidID)
	if err != nil {
		return SpendLimitReached, err
	}
	if tag.RowsAffected() == 0 {
		// Уникальный ключ (feature, bid) гарантирует однократность списания.
		if err = tx.Commit(ctx); err != nil {
			return SpendLimitReached, err
		}
		return SpendAlreadyRecorded, nil
	}

	updateQuery := `UPDATE grant_feature SET used = used + 1
	               WHERE id = $1 AND value_type = $2 AND used < total`
	tag, err = tx.Exec(ctx, updateQuery, featureID, models.CountFeature)
	if err != nil {
		return SpendLimitReached, err
	}
	if tag.RowsAffected() == 0 {
		// Откат убирает и запись использования: кредит не потрачен.
		return SpendLimitReached, nil
	}

	if err = tx.Commit(ctx); err != nil {
		return SpendLimitReached, err
	}
	return SpendOK, nil
}

// InsertRevealEvent добавляет строку аудита раскрытий.
func (r *PostgresEntitlementRepository) InsertRevealEvent(ctx context.Context, event models.RevealEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	query := `INSERT INTO reveal_event (id, bid_id, subscriber_kind, subscriber_id, outcome, grant_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NOW())`
	_, err := r.DB.Exec(ctx, query,
		event.ID, event.BidID, event.SubscriberKind, event.SubscriberID, event.Outcome, event.GrantID)
	return err
}

// EnsurePackageRevealEvent пишет не более одной строки RevealedViaPackage
// на пару (grant, bid); повторные просмотры строк не добавляют.
func (r *PostgresEntitlementRepository) EnsurePackageRevealEvent(ctx context.Context, event models.RevealEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	query := `INSERT INTO reveal_event (id, bid_id, subscriber_kind, subscriber_id, outcome, grant_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NOW())
	          ON CONFLICT (grant_id, bid_id) WHERE outcome = 'RevealedViaPackage' DO NOTHING`
	_, err := r.DB.Exec(ctx, query,
		event.ID, event.BidID, event.SubscriberKind, event.SubscriberID, models.RevealedViaPackage, event.GrantID)
	return err
}

// EnsurePurchaseRevealEvent идемпотентно ставит отметку о доступе через
// купленный пакет документов.
func (r *PostgresEntitlementRepository) EnsurePurchaseRevealEvent(ctx context.Context, event models.RevealEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	query := `INSERT INTO reveal_event (id, bid_id, subscriber_kind, subscriber_id, outcome, grant_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NOW())
	          ON CONFLICT (bid_id, subscriber_kind, subscriber_id) WHERE outcome = 'RevealedViaBuyTermsBook' DO NOTHING`
	_, err := r.DB.Exec(ctx, query,
		event.ID, event.BidID, event.SubscriberKind, event.SubscriberID, models.RevealedViaBuyTermsBook, event.GrantID)
	return err
}
