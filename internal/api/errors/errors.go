// Пакет errors — ответы об ошибках HTTP API zimbra-sync:
// {"error": {"code": "...", "message": "...", "remoteCode": "..."}}.
// remoteCode присутствует только у ZIMBRA_ERROR и содержит код SOAP Fault.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeZimbraError      = "ZIMBRA_ERROR"
	CodeEmptyAddressBook = "EMPTY_ADDRESS_BOOK"
	CodeInternalError    = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RemoteCode string `json:"remoteCode,omitempty"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// ValidationError — 400.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404: нет пользователя, группы или структуры в каталоге.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403: в токене нет роли администратора.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409: обработка очереди уже запущена.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// ZimbraError — 502: Zimbra вернула Fault или некорректный ответ.
// remoteCode (например, account.NO_SUCH_ACCOUNT) может быть пустым.
func ZimbraError(w http.ResponseWriter, message, remoteCode string) {
	write(w, http.StatusBadGateway, errorDetail{
		Code:       CodeZimbraError,
		Message:    message,
		RemoteCode: remoteCode,
	})
}

// EmptyAddressBook — 422: пользователю не видно ни одного контакта.
func EmptyAddressBook(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeEmptyAddressBook, message)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
