package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/services"
	"github.com/senyabanana/procurement-core/internal/utils"
)

// BidHandler - структура для обработки HTTP-запросов жизненного цикла закупки.
type BidHandler struct {
	Lifecycle *services.LifecycleService
	Access    *services.AccessService
	Logger    *log.Logger
	Timeout   time.Duration
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(lifecycle *services.LifecycleService, access *services.AccessService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Lifecycle: lifecycle,
		Access:    access,
		Logger:    logger,
		Timeout:   timeout,
	}
}

// CreateBid обрабатывает запросы для создания закупки.
func (h *BidHandler) CreateBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	newBid, err := h.Lifecycle.CreateBid(ctx, utils.ParseActor(r), bidReq)
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to create bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(newBid); err != nil {
		h.Logger.Println(err)
	}
}

// ListBids обрабатывает запросы для получения списка видимых закупок.
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bids, err := h.Access.ListBids(ctx, utils.ParseActor(r), limit, offset)
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve bids")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bids); err != nil {
		h.Logger.Println(err)
	}
}

// ListMyBids обрабатывает запросы для получения списка закупок владельца.
func (h *BidHandler) ListMyBids(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bids, err := h.Access.ListMyBids(ctx, utils.ParseActor(r), limit, offset)
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve bids")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bids); err != nil {
		h.Logger.Println(err)
	}
}

// GetBid обрабатывает запросы на просмотр закупки: доступ проверяется по
// роли и отношению, закрытые поля фильтруются через квоту раскрытий.
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	view, err := h.Access.ViewBid(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(view); err != nil {
		h.Logger.Println(err)
	}
}

// GetBidStatus обрабатывает запросы для получения статуса закупки.
func (h *BidHandler) GetBidStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	status, err := h.Lifecycle.GetBidStatus(ctx, r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve bid status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(status); err != nil {
		h.Logger.Println(err)
	}
}

// ReviewLog обрабатывает запросы на просмотр журнала решений по закупке.
func (h *BidHandler) ReviewLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	entries, err := h.Lifecycle.ListReviewLog(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve review log")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(entries); err != nil {
		h.Logger.Println(err)
	}
}

// SubmitBid обрабатывает отправку черновика на публикацию.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Lifecycle.SubmitForPublication(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to submit bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bid); err != nil {
		h.Logger.Println(err)
	}
}

// ReviewBid обрабатывает решение администратора по публикации.
func (h *BidHandler) ReviewBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidId := r.PathValue("bidId")
	decision := r.URL.Query().Get("decision")
	reason := r.URL.Query().Get("reason")
	actor := utils.ParseActor(r)

	var bid *models.Bid
	var err error
	switch decision {
	case "Accepted":
		bid, err = h.Lifecycle.AdminAccept(ctx, actor, bidId)
	case "Rejected":
		bid, err = h.Lifecycle.AdminReject(ctx, actor, bidId, reason)
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, "decision must be Accepted or Rejected")
		return
	}
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to review bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bid); err != nil {
		h.Logger.Println(err)
	}
}

// PublishDirect обрабатывает прямую публикацию закрытой или мгновенной закупки.
func (h *BidHandler) PublishDirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Lifecycle.AdminPublishDirect(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to publish bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bid); err != nil {
		h.Logger.Println(err)
	}
}

// CancelBid обрабатывает отмену закупки.
func (h *BidHandler) CancelBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Lifecycle.Cancel(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to cancel bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bid); err != nil {
		h.Logger.Println(err)
	}
}

// EditBid обрабатывает запросы изменения закупки.
func (h *BidHandler) EditBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PATCH is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var updateFields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updateFields); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updatedBid, err := h.Lifecycle.EditBid(ctx, utils.ParseActor(r), r.PathValue("bidId"), updateFields)
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to update bid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(updatedBid); err != nil {
		h.Logger.Println(err)
	}
}
