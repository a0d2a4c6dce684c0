// handler.go — основной обработчик HTTP API zimbra-sync.
// Делегирует запросы в сервисный слой и переводит ошибки сервисов в HTTP-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/zimbra-sync/internal/api/errors"
	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/mailbox"
	"github.com/bigkaa/zimbra-sync/internal/service"
)

// QueueController — управление очередью синхронизации.
// Реализуется *service.QueueDrainService.
type QueueController interface {
	TryStartAsync() (runID string, started bool)
	Running() bool
	Stats(ctx context.Context) (*model.QueueStats, error)
	State(ctx context.Context) (*model.SyncState, error)
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Enqueue(ctx context.Context, userID string, action model.SyncAction) (*model.SyncJob, error)
}

// GroupSyncer — синхронизация списка рассылки группы.
// Реализуется *service.AccountReconciler.
type GroupSyncer interface {
	SyncGroup(ctx context.Context, groupID string) error
}

// AddressBookPublisher — публикация адресных книг.
// Реализуется *service.AddressBookService.
type AddressBookPublisher interface {
	SyncStructure(ctx context.Context, uai string) (*model.AddressBookResult, error)
	SyncVisibleContacts(ctx context.Context, userID string) (*model.AddressBookResult, error)
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health      *HealthHandler
	queue       QueueController
	groups      GroupSyncer
	addressBook AddressBookPublisher
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	queue QueueController,
	groups GroupSyncer,
	addressBook AddressBookPublisher,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:      health,
		queue:       queue,
		groups:      groups,
		addressBook: addressBook,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса; пустое тело допустимо.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var remote *mailbox.RemoteError
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrEmptyAddressBook):
		apierrors.EmptyAddressBook(w, err.Error())
	case errors.Is(err, service.ErrDrainInProgress):
		apierrors.Conflict(w, err.Error())
	case errors.As(err, &remote), errors.Is(err, mailbox.ErrMalformedResponse),
		errors.Is(err, mailbox.ErrAccountInactive):
		remoteCode := ""
		if remote != nil {
			remoteCode = remote.Code
		}
		h.logger.Warn("Ошибка Zimbra",
			slog.String("op", op),
			slog.String("remote_code", remoteCode),
			slog.String("error", err.Error()),
		)
		apierrors.ZimbraError(w, err.Error(), remoteCode)
	default:
		h.logger.Error("Внутренняя ошибка", slog.String("op", op), slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка: "+op)
	}
}
