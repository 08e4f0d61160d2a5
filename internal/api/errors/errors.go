// Пакет errors — конструкторы стандартных ошибок API Event Module.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeAlreadyEnrolled    = "ALREADY_ENROLLED"
	CodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	CodeNotEnrolled        = "NOT_ENROLLED"
	CodeInvalidState       = "INVALID_STATE"
	CodeNegativeDuration   = "NEGATIVE_DURATION"
	CodeIDPUnavailable     = "IDP_UNAVAILABLE"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// AlreadyEnrolled — 409 пользователь уже записан на событие.
func AlreadyEnrolled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeAlreadyEnrolled, message)
}

// CapacityExceeded — 409 достигнут лимит участников события.
func CapacityExceeded(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeCapacityExceeded, message)
}

// NotEnrolled — 404 пользователь не записан на событие.
func NotEnrolled(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotEnrolled, message)
}

// InvalidState — 409 операция недопустима в текущем состоянии участия.
func InvalidState(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidState, message)
}

// NegativeDuration — 400 время финиша раньше времени старта.
func NegativeDuration(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeNegativeDuration, message)
}

// IDPUnavailable — 502 сторонний Identity Provider недоступен.
func IDPUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeIDPUnavailable, message)
}

// StorageUnavailable — 503 хранилище недоступно.
func StorageUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeStorageUnavailable, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
