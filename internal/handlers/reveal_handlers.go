package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/procurement-core/internal/services"
	"github.com/senyabanana/procurement-core/internal/utils"
)

// RevealHandler - структура для обработки запросов квоты раскрытий.
type RevealHandler struct {
	Entitlements *services.EntitlementService
	Logger       *log.Logger
	Timeout      time.Duration
}

// NewRevealHandler создает новый экземпляр RevealHandler.
func NewRevealHandler(entitlements *services.EntitlementService, logger *log.Logger, timeout time.Duration) *RevealHandler {
	return &RevealHandler{
		Entitlements: entitlements,
		Logger:       logger,
		Timeout:      timeout,
	}
}

// CheckReveal отвечает, раскрыты ли закрытые поля закупки; проверка не
// списывает кредит.
func (h *RevealHandler) CheckReveal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	decision, err := h.Entitlements.CheckReveal(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to check reveal")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(decision); err != nil {
		h.Logger.Println(err)
	}
}

// SpendReveal списывает один кредит раскрытия за закупку.
func (h *RevealHandler) SpendReveal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only POST is allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	decision, err := h.Entitlements.SpendReveal(ctx, utils.ParseActor(r), r.PathValue("bidId"))
	if err != nil {
		handleServiceError(w, h.Logger, err, "failed to spend reveal credit")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(decision); err != nil {
		h.Logger.Println(err)
	}
}
