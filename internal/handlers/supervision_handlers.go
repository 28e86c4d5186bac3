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

// SupervisionHandler - структура для обработки решений финансирующего донора.
type SupervisionHandler struct {
	Supervision *services.SupervisionService
	Logger      *log.Logger
	Timeout     time.Duration
}

// NewSupervisionHandler создает новый экземпляр SupervisionHandler.
func NewSupervisionHandler(supervision *services.SupervisionService, logger *log.Logger, timeout time.Duration) *SupervisionHandler {
	return &SupervisionHandler{
		Supervision: supervision,
		Logger:      logger,
		Timeout:     timeout,
	}
}

// Decide обрабатывает решение донора по заявке на кураторство.
func (h *SupervisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only PUT is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bidId := r.PathValue("bidId")
	decision := r.URL.Query().Get("decision")
	claimCode := r.URL.Query().Get("claimCode")
	if claimCode == "" {
		claimCode = models.ClaimBidSupervision
	}
	actor := utils.ParseActor(r)

	var bid *models.Bid
	var err error
	switch decision {
	case "Approved":
		bid, err = h.Supervision.Approve(ctx, actor, bidId, claimCode)
	case "Rejected":
		bid, err = h.Supervision.Reject(ctx, actor, bidId, claimCode, r.URL.Query().Get("reason"))
	default:
		utils.SendErrorResponse(w, http.StatusBadRequest, "decision must be Approved or Rejected")
		return
	}
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to record supervision decision")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(bid); err != nil {
		h.Logger.Println(err)
	}
}

// ListRecords обрабатывает запросы для получения истории заявок по закупке.
func (h *SupervisionHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	records, err := h.Supervision.ListRecords(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to retrieve supervision records")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(records); err != nil {
		h.Logger.Println(err)
	}
}
