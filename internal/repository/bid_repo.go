package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusChange описывает смену статуса закупки с оптимистической проверкой
// версии; события outbox и запись журнала решений фиксируются той же
// транзакцией, что и смена статуса.
type StatusChange struct {
	BidID        string
	To           models.BidStatus
	Version      int
	ClearFunded  bool
	BrochurePath string
	Events       []models.OutboxEvent
	Review       *models.ReviewLogEntry
}

// BidRepository - интерфейс для работы с закупками.
type BidRepository interface {
	CreateBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, bidID string) (*models.Bid, error)
	ListBids(ctx context.Context, limit, offset int) ([]models.Bid, error)
	ListOwnerBids(ctx context.Context, owner models.Owner, limit, offset int) ([]models.Bid, error)
	TransitionBid(ctx context.Context, change StatusChange) (*models.Bid, error)
	EditBid(ctx context.Context, bidID string, updateFields map[string]interface{}, version int) (*models.Bid, error)
	SetBrochure(ctx context.Context, bidID, path string) error
}

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, name, objective, status, bid_type, owner_kind, owner_id, funded,
	COALESCE(funding_donor_id::text, ''), COALESCE(supervising_association_id::text, ''),
	document_price, platform_fee, tax, total_price,
	COALESCE(enquiry_deadline, 'epoch'::timestamp), COALESCE(offer_deadline, 'epoch'::timestamp),
	COALESCE(opening_date, 'epoch'::timestamp), COALESCE(confirmation_date, 'epoch'::timestamp),
	COALESCE(anchoring_date, 'epoch'::timestamp),
	contact_name, contact_email, contact_phone, brochure_path,
	hidden, entity_restricted, rfp_source, regions, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBid(row rowScanner) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID,
		&bid.Name,
		&bid.Objective,
		&bid.Status,
		&bid.Type,
		&bid.Owner.Kind,
		&bid.Owner.ID,
		&bid.Funded,
		&bid.FundingDonorID,
		&bid.SupervisingAssociationID,
		&bid.DocumentPrice,
		&bid.PlatformFee,
		&bid.Tax,
		&bid.TotalPrice,
		&bid.EnquiryDeadline,
		&bid.OfferDeadline,
		&bid.OpeningDate,
		&bid.ConfirmationDate,
		&bid.AnchoringDate,
		&bid.ContactName,
		&bid.ContactEmail,
		&bid.ContactPhone,
		&bid.BrochurePath,
		&bid.Hidden,
		&bid.EntityRestricted,
		&bid.RFPSource,
		&bid.Regions,
		&bid.Version,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// CreateBid создает новую закупку в статусе Draft.
func (r *PostgresBidRepository) CreateBid(ctx context.Context, bid *models.Bid) error {
	insertQuery := `INSERT INTO bid (id, name, objective, status, bid_type, owner_kind, owner_id, funded,
	                funding_donor_id, supervising_association_id,
	                document_price, platform_fee, tax, total_price,
	                enquiry_deadline, offer_deadline, opening_date, confirmation_date, anchoring_date,
	                contact_name, contact_email, contact_phone,
	                hidden, entity_restricted, rfp_source, regions, version, created_at, updated_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, NULLIF($10, '')::uuid,
	                $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		bid.ID,
		bid.Name,
		bid.Objective,
		bid.Status,
		bid.Type,
		bid.Owner.Kind,
		bid.Owner.ID,
		bid.Funded,
		bid.FundingDonorID,
		bid.SupervisingAssociationID,
		bid.DocumentPrice,
		bid.PlatformFee,
		bid.Tax,
		bid.TotalPrice,
		bid.EnquiryDeadline,
		bid.OfferDeadline,
		bid.OpeningDate,
		bid.ConfirmationDate,
		bid.AnchoringDate,
		bid.ContactName,
		bid.ContactEmail,
		bid.ContactPhone,
		bid.Hidden,
		bid.EntityRestricted,
		bid.RFPSource,
		bid.Regions,
		bid.Version,
		bid.CreatedAt,
		bid.UpdatedAt)
	return err
}

// GetBid возвращает закупку по ID.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidID string) (*models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE id = $1`
	bid, err := scanBid(r.DB.QueryRow(ctx, query, bidID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrBidNotFound()
	}
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// ListBids возвращает список закупок.
func (r *PostgresBidRepository) ListBids(ctx context.Context, limit, offset int) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.DB.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

// ListOwnerBids возвращает список закупок владельца.
func (r *PostgresBidRepository) ListOwnerBids(ctx context.Context, owner models.Owner, limit, offset int) ([]models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE owner_kind = $1 AND owner_id = $2
	          ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.DB.Query(ctx, query, owner.Kind, owner.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, *bid)
	}
	return bids, rows.Err()
}

// TransitionBid меняет статус закупки с проверкой версии; события outbox
// и запись журнала решений пишутся той же транзакцией, чтобы сбой после
// коммита не мог их потерять. Проигравший гонку получает Conflict.
func (r *PostgresBidRepository) TransitionBid(ctx context.Context, change StatusChange) (*models.Bid, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	updateQuery := `UPDATE bid
	                SET status = $2,
	                    version = version + 1,
	                    updated_at = NOW(),
	                    funded = CASE WHEN $3 THEN FALSE ELSE funded END,
	                    brochure_path = CASE WHEN $4 <> '' THEN $4 ELSE brochure_path END
	                WHERE id = $1 AND version = $5`
	tag, err := tx.Exec(ctx, updateQuery, change.BidID, change.To, change.ClearFunded, change.BrochurePath, change.Version)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.NewConflict("BID_VERSION_CONFLICT", "bid was modified concurrently, retry with fresh state")
	}

	outboxQuery := `INSERT INTO outbox_event (id, event_type, payload, status, attempts, created_at)
	               VALUES ($1, $2, $3, $4, $5, $6)`
	for _, event := range change.Events {
		if _, err = tx.Exec(ctx, outboxQuery,
			event.ID, event.EventType, event.Payload, event.Status, event.Attempts, event.CreatedAt); err != nil {
			return nil, err
		}
	}

	if change.Review != nil {
		reviewQuery := `INSERT INTO review_log (id, entity_id, request_type, outcome, reason, created_at)
		               VALUES ($1, $2, $3, $4, $5, NOW())`
		if _, err = tx.Exec(ctx, reviewQuery,
			uuid.New().String(), change.BidID, change.Review.RequestType, change.Review.Outcome, change.Review.Reason); err != nil {
			return nil, err
		}
	}

	bid, err := scanBid(tx.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1`, change.BidID))
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return bid, nil
}

// EditBid меняет поля закупки с проверкой версии.
func (r *PostgresBidRepository) EditBid(ctx context.Context, bidID string, updateFields map[string]interface{}, version int) (*models.Bid, error) {
	allowed := map[string]string{
		"name":              "name",
		"objective":         "objective",
		"documentPrice":     "document_price",
		"platformFee":       "platform_fee",
		"tax":               "tax",
		"totalPrice":        "total_price",
		"enquiryDeadline":   "enquiry_deadline",
		"offerDeadline":     "offer_deadline",
		"openingDate":       "opening_date",
		"confirmationDate":  "confirmation_date",
		"anchoringDate":     "anchoring_date",
		"regions":           "regions",
		"contactName":       "contact_name",
		"contactEmail":      "contact_email",
		"contactPhone":      "contact_phone",
	}

	var updates []string
	args := []interface{}{bidID, version} // Первые аргументы всегда bidId и version
	argIndex := 3

	for field, value := range updateFields {
		column, ok := allowed[field]
		if !ok {
			return nil, models.NewInvalidInput("BID_FIELD_UNKNOWN", fmt.Sprintf("unknown field: %s", field))
		}
		if t, isTime := value.(time.Time); isTime {
			value = t.UTC()
		}
		updates = append(updates, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	if len(updates) == 0 {
		return nil, models.NewErrorResponse(http.StatusBadRequest, "no valid fields to update")
	}

	updates = append(updates, "version = version + 1", "updated_at = NOW()")
	updateQuery := fmt.Sprintf(
		"UPDATE bid SET %s WHERE id = $1 AND version = $2 RETURNING "+bidColumns,
		strings.Join(updates, ", "))

	bid, err := scanBid(r.DB.QueryRow(ctx, updateQuery, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.NewConflict("BID_VERSION_CONFLICT", "bid was modified concurrently, retry with fresh state")
	}
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// SetBrochure сохраняет ссылку на сформированную брошюру закупки.
func (r *PostgresBidRepository) SetBrochure(ctx context.Context, bidID, path string) error {
	_, err := r.DB.Exec(ctx, `UPDATE bid SET brochure_path = $2, updated_at = NOW() WHERE id = $1`, bidID, path)
	return err
}

// NewBidID генерирует идентификатор закупки.
func NewBidID() string {
	return uuid.New().String()
}
