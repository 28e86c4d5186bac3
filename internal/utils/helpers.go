package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/senyabanana/procurement-core/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendError отправляет типизированную ошибку ядра со стабильным кодом.
func SendError(w http.ResponseWriter, errorResponse *models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errorResponse.StatusCode)
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// ParseActor извлекает явного актора из параметров запроса; сервисы
// никогда не читают "текущего пользователя" из глобального состояния.
func ParseActor(r *http.Request) models.Actor {
	kind := r.URL.Query().Get("actorKind")
	if kind == "" {
		kind = string(models.GuestActor)
	}
	actor := models.Actor{
		Kind: models.ActorKind(kind),
		ID:   r.URL.Query().Get("actorId"),
	}
	if claims := r.URL.Query().Get("claims"); claims != "" {
		actor.Claims = strings.Split(claims, ",")
	}
	if privileged := r.URL.Query().Get("privileged"); privileged == "true" {
		actor.Privileged = true
	}
	return actor
}
