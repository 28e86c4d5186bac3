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

// SupervisionRepository - интерфейс для работы с решениями доноров.
type SupervisionRepository interface {
	CreateRecords(ctx context.Context, records []models.DonorSupervisionRecord) error
	LatestRecord(ctx context.Context, bidID, claimCode string) (*models.DonorSupervisionRecord, error)
	ListRecords(ctx context.Context, bidID string) ([]models.DonorSupervisionRecord, error)
	UpdateRecordStatus(ctx context.Context, recordID string, status models.SupervisionStatus, reason string) error
	UpsertLink(ctx context.Context, link models.BidDonorLink) error
	GetLink(ctx context.Context, bidID string) (*models.BidDonorLink, error)
	SetLinkResponse(ctx context.Context, bidID string, response models.DonorResponse) error
	DonorClaims(ctx context.Context, donorID string) ([]string, error)
}

// PostgresSupervisionRepository - реализация SupervisionRepository для базы данных.
type PostgresSupervisionRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresSupervisionRepository создает новый экземпляр PostgresSupervisionRepository.
func NewPostgresSupervisionRepository(db *pgxpool.Pool) *PostgresSupervisionRepository {
	return &PostgresSupervisionRepository{DB: db}
}

// CreateRecords добавляет записи решений; таблица append-only, старые
// записи по той же паре (bid, claim) остаются для аудита.
func (r *PostgresSupervisionRepository) CreateRecords(ctx context.Context, records []models.DonorSupervisionRecord) error {
	insertQuery := `INSERT INTO donor_supervision_record (id, bid_id, donor_id, claim_code, status, rejection_reason, created_at)
	               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range records {
		record := &records[i]
		if record.ID == "" {
			record.ID = uuid.New().String()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		_, err := r.DB.Exec(ctx, insertQuery,
			record.ID, record.BidID, record.DonorID, record.ClaimCode, record.Status, record.RejectionReason, record.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

// LatestRecord возвращает самую свежую запись по паре (bid, claim);
// только она имеет решающее значение.
func (r *PostgresSupervisionRepository) LatestRecord(ctx context.Context, bidID, claimCode string) (*models.DonorSupervisionRecord, error) {
	query := `SELECT id, bid_id, donor_id, claim_code, status, rejection_reason, created_at
	          FROM donor_supervision_record
	          WHERE bid_id = $1 AND claim_code = $2
	          ORDER BY created_at DESC
	          LIMIT 1`
	var record models.DonorSupervisionRecord
	err := r.DB.QueryRow(ctx, query, bidID, claimCode).Scan(
		&record.ID,
		&record.BidID,
		&record.DonorID,
		&record.ClaimCode,
		&record.Status,
		&record.RejectionReason,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecords возвращает все записи решений по закупке.
func (r *PostgresSupervisionRepository) ListRecords(ctx context.Context, bidID string) ([]models.DonorSupervisionRecord, error) {
	query := `SELECT id, bid_id, donor_id, claim_code, status, rejection_reason, created_at
	          FROM donor_supervision_record
	          WHERE bid_id = $1
	          ORDER BY created_at DESC`
	rows, err := r.DB.Query(ctx, query, bidID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DonorSupervisionRecord
	for rows.Next() {
		var record models.DonorSupervisionRecord
		if err := rows.Scan(
			&record.ID,
			&record.BidID,
			&record.DonorID,
			&record.ClaimCode,
			&record.Status,
			&record.RejectionReason,
			&record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateRecordStatus фиксирует решение донора в самой свежей записи.
func (r *PostgresSupervisionRepository) UpdateRecordStatus(ctx context.Context, recordID string, status models.SupervisionStatus, reason string) error {
	updateQuery := `UPDATE donor_supervision_record SET status = $2, rejection_reason = $3 WHERE id = $1`
	_, err := r.DB.Exec(ctx, updateQuery, recordID, status, reason)
	return err
}

// UpsertLink сохраняет связку закупки с финансирующим донором.
func (r *PostgresSupervisionRepository) UpsertLink(ctx context.Context, link models.BidDonorLink) error {
	query := `INSERT INTO bid_donor_link (bid_id, donor_id, response, contact_name, contact_email, contact_phone)
	          VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)
	          ON CONFLICT (bid_id) DO UPDATE
	          SET donor_id = EXCLUDED.donor_id,
	              response = EXCLUDED.response,
	              contact_name = EXCLUDED.contact_name,
	              contact_email = EXCLUDED.contact_email,
	              contact_phone = EXCLUDED.contact_phone`
	_, err := r.DB.Exec(ctx, query,
		link.BidID, link.DonorID, link.Response, link.ContactName, link.ContactEmail, link.ContactPhone)
	return err
}

// GetLink возвращает связку закупки с донором.
func (r *PostgresSupervisionRepository) GetLink(ctx context.Context, bidID string) (*models.BidDonorLink, error) {
	query := `SELECT bid_id, COALESCE(donor_id::text, ''), response, contact_name, contact_email, contact_phone
	          FROM bid_donor_link WHERE bid_id = $1`
	var link models.BidDonorLink
	err := r.DB.QueryRow(ctx, query, bidID).Scan(
		&link.BidID,
		&link.DonorID,
		&link.Response,
		&link.ContactName,
		&link.ContactEmail,
		&link.ContactPhone,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// SetLinkResponse фиксирует ответ донора в связке с закупкой.
func (r *PostgresSupervisionRepository) SetLinkResponse(ctx context.Context, bidID string, response models.DonorResponse) error {
	_, err := r.DB.Exec(ctx, `UPDATE bid_donor_link SET response = $2 WHERE bid_id = $1`, bidID, response)
	return err
}

// DonorClaims возвращает коды разрешений донора.
func (r *PostgresSupervisionRepository) DonorClaims(ctx context.Context, donorID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT claim_code FROM donor_claim WHERE donor_id = $1`, donorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []string
	for rows.Next() {
		var claim string
		if err := rows.Scan(&claim); err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}
