// addressbook.go — обработчики /api/v1/addressbooks.
// Публикация выполняется синхронно; ответ содержит итог публикации.
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

type addressBookResponse struct {
	RunID       string    `json:"runId"`
	Target      string    `json:"target"`
	Folders     int       `json:"folders"`
	Contacts    int       `json:"contacts"`
	Skipped     bool      `json:"skipped"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

func toAddressBookResponse(r *model.AddressBookResult) addressBookResponse {
	return addressBookResponse{
		RunID:       r.RunID,
		Target:      r.Target,
		Folders:     r.Folders,
		Contacts:    r.Contacts,
		Skipped:     r.Skipped,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

// SyncStructureAddressBook — POST /api/v1/addressbooks/structures/{uai}.
func (h *APIHandler) SyncStructureAddressBook(w http.ResponseWriter, r *http.Request) {
	result, err := h.addressBook.SyncStructure(r.Context(), chi.URLParam(r, "uai"))
	if err != nil {
		h.writeServiceError(w, "адресная книга структуры", err)
		return
	}
	writeJSON(w, http.StatusOK, toAddressBookResponse(result))
}

// SyncUserAddressBook — POST /api/v1/addressbooks/users/{userID}.
func (h *APIHandler) SyncUserAddressBook(w http.ResponseWriter, r *http.Request) {
	result, err := h.addressBook.SyncVisibleContacts(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, "адресная книга пользователя", err)
		return
	}
	writeJSON(w, http.StatusOK, toAddressBookResponse(result))
}
