package models

import "net/http"

// ErrorKind - категория ошибки из общей таксономии ядра.
type ErrorKind string

const (
	KindNotAuthenticated      ErrorKind = "NotAuthenticated"
	KindNotAuthorized         ErrorKind = "NotAuthorized"
	KindNotFound              ErrorKind = "NotFound"
	KindInvalidInput          ErrorKind = "InvalidInput"
	KindConflict              ErrorKind = "Conflict"
	KindBusinessRuleViolation ErrorKind = "BusinessRuleViolation"
)

// ErrorResponse описывает ошибку с категорией, стабильным кодом и сообщением.
type ErrorResponse struct {
	StatusCode int       `json:"-"`
	Kind       ErrorKind `json:"-"`
	Code       string    `json:"code,omitempty"`
	Message    string    `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// NewErrorKind создает ошибку заданной категории со стабильным кодом.
func NewErrorKind(kind ErrorKind, statusCode int, code, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Kind:       kind,
		Code:       code,
		Message:    message,
	}
}

// NewNotAuthenticated создает ошибку отсутствия аутентификации.
func NewNotAuthenticated(code, message string) *ErrorResponse {
	return NewErrorKind(KindNotAuthenticated, http.StatusUnauthorized, code, message)
}

// NewNotAuthorized создает ошибку отсутствия прав.
func NewNotAuthorized(code, message string) *ErrorResponse {
	return NewErrorKind(KindNotAuthorized, http.StatusForbidden, code, message)
}

// NewNotFound создает ошибку отсутствия записи.
func NewNotFound(code, message string) *ErrorResponse {
	return NewErrorKind(KindNotFound, http.StatusNotFound, code, message)
}

// NewInvalidInput создает ошибку валидации входных данных.
func NewInvalidInput(code, message string) *ErrorResponse {
	return NewErrorKind(KindInvalidInput, http.StatusBadRequest, code, message)
}

// NewConflict создает ошибку нарушения статусного ограничения; вызывающая
// сторона может повторить операцию со свежим состоянием.
func NewConflict(code, message string) *ErrorResponse {
	return NewErrorKind(KindConflict, http.StatusConflict, code, message)
}

// NewBusinessRuleViolation создает ошибку нарушения бизнес-правила;
// повторять такую операцию вслепую нельзя.
func NewBusinessRuleViolation(code, message string) *ErrorResponse {
	return NewErrorKind(KindBusinessRuleViolation, http.StatusUnprocessableEntity, code, message)
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// IsKind сообщает, относится ли ошибка к заданной категории.
func IsKind(err error, kind ErrorKind) bool {
	if errorResponse, ok := err.(*ErrorResponse); ok {
		return errorResponse.Kind == kind
	}
	return false
}
