// sync.go — обработчики /api/v1/sync и /api/v1/groups.
// Запуск разбора очереди, статус, возврат зависших задач, постановка задач,
// принудительная синхронизация списка рассылки.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/zimbra-sync/internal/api/errors"
	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

type drainResponse struct {
	RunID string `json:"runId"`
}

type queueStatsResponse struct {
	Todo       int `json:"todo"`
	InProgress int `json:"inProgress"`
	Done       int `json:"done"`
	Error      int `json:"error"`
}

type syncStatusResponse struct {
	Running           bool               `json:"running"`
	Queue             queueStatsResponse `json:"queue"`
	LastDrainAt       *time.Time         `json:"lastDrainAt"`
	LastAddressBookAt *time.Time         `json:"lastAddressBookAt"`
}

type resetStaleRequest struct {
	// OlderThan — длительность в формате time.ParseDuration ("30m", "2h")
	OlderThan string `json:"olderThan"`
}

type resetStaleResponse struct {
	Reset int64 `json:"reset"`
}

type enqueueRequest struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
}

type jobResponse struct {
	ID     int64  `json:"id"`
	UserID string `json:"userId"`
	Action string `json:"action"`
	Status string `json:"status"`
}

type groupSyncResponse struct {
	GroupID  string    `json:"groupId"`
	SyncedAt time.Time `json:"syncedAt"`
}

// defaultResetStaleAge — возраст по умолчанию для reset-stale без тела.
const defaultResetStaleAge = time.Hour

// StartDrain — POST /api/v1/sync/drain.
// Запускает разбор очереди в фоне: 202 с runId, 409 если проход уже идёт.
func (h *APIHandler) StartDrain(w http.ResponseWriter, _ *http.Request) {
	runID, started := h.queue.TryStartAsync()
	if !started {
		apierrors.Conflict(w, "Разбор очереди уже выполняется")
		return
	}
	writeJSON(w, http.StatusAccepted, drainResponse{RunID: runID})
}

// GetSyncStatus — GET /api/v1/sync/status.
func (h *APIHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, "статистика очереди", err)
		return
	}
	state, err := h.queue.State(r.Context())
	if err != nil {
		h.writeServiceError(w, "состояние синхронизации", err)
		return
	}

	writeJSON(w, http.StatusOK, syncStatusResponse{
		Running: h.queue.Running(),
		Queue: queueStatsResponse{
			Todo:       stats.Todo,
			InProgress: stats.InProgress,
			Done:       stats.Done,
			Error:      stats.Error,
		},
		LastDrainAt:       state.LastDrainAt,
		LastAddressBookAt: state.LastAddressBookAt,
	})
}

// ResetStale — POST /api/v1/sync/reset-stale.
// Возвращает в TODO задачи IN_PROGRESS старше olderThan (по умолчанию 1h).
func (h *APIHandler) ResetStale(w http.ResponseWriter, r *http.Request) {
	var req resetStaleRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	olderThan := defaultResetStaleAge
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil {
			apierrors.ValidationError(w, "Некорректное olderThan: "+err.Error())
			return
		}
		olderThan = d
	}

	n, err := h.queue.ResetStale(r.Context(), olderThan)
	if err != nil {
		h.writeServiceError(w, "возврат зависших задач", err)
		return
	}
	writeJSON(w, http.StatusOK, resetStaleResponse{Reset: n})
}

// EnqueueJob — POST /api/v1/sync/jobs.
func (h *APIHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.UserID, model.SyncAction(req.Action))
	if err != nil {
		h.writeServiceError(w, "постановка задачи", err)
		return
	}
	writeJSON(w, http.StatusCreated, jobResponse{
		ID:     job.ID,
		UserID: job.UserID,
		Action: string(job.Action),
		Status: string(job.Status),
	})
}

// SyncGroup — POST /api/v1/groups/{groupID}/sync.
// Создаёт или обновляет список рассылки группы, даже если группа уже синхронизирована.
func (h *APIHandler) SyncGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if err := h.groups.SyncGroup(r.Context(), groupID); err != nil {
		h.writeServiceError(w, "синхронизация группы", err)
		return
	}
	writeJSON(w, http.StatusOK, groupSyncResponse{GroupID: groupID, SyncedAt: time.Now().UTC()})
}
