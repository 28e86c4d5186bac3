package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/senyabanana/procurement-core/internal/models"
	"github.com/senyabanana/procurement-core/internal/services"
	"github.com/senyabanana/procurement-core/internal/utils"
)

// handleServiceError отдает типизированную ошибку как есть; неожиданный
// сбой журналируется со ссылкой корреляции и наружу уходит общий ответ
// с этой же ссылкой.
func handleServiceError(w http.ResponseWriter, logger *log.Logger, err error, message string) {
	if errorResponse, ok := err.(*models.ErrorResponse); ok {
		logger.Println(err)
		utils.SendError(w, errorResponse)
		return
	}
	ref := services.NewCorrelationRef()
	logger.Printf("[%s] %v", ref, err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("%s (ref: %s)", message, ref))
}
