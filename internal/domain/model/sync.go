package model

import "time"

// SyncAction — действие задачи синхронизации.
type SyncAction string

const (
	ActionCreate SyncAction = "CREATE"
	ActionModify SyncAction = "MODIFY"
	ActionDelete SyncAction = "DELETE"
)

// Valid сообщает, известно ли действие.
func (a SyncAction) Valid() bool {
	switch a {
	case ActionCreate, ActionModify, ActionDelete:
		return true
	}
	return false
}

// SyncStatus — статус задачи в очереди.
type SyncStatus string

const (
	StatusTodo       SyncStatus = "TODO"
	StatusInProgress SyncStatus = "IN_PROGRESS"
	StatusDone       SyncStatus = "DONE"
	StatusError      SyncStatus = "ERROR"
)

// SyncJob — задача синхронизации учётной записи.
// Хранится в таблице sync_queue.
type SyncJob struct {
	// ID — ключ строки; 0 — синтетическая задача, не записывается обратно
	ID int64
	// UserID — идентификатор субъекта в каталоге
	UserID string
	Action SyncAction
	Status SyncStatus
	// Logs — диагностический текст при ошибке
	Logs      string
	ClaimedAt *time.Time
}

// SyncState — состояние синхронизации (одна строка в БД).
// Хранится в таблице sync_state (id = 1, всегда одна запись).
type SyncState struct {
	// ID — всегда 1
	ID int
	// LastDrainAt — время последнего разбора очереди
	LastDrainAt *time.Time
	// LastAddressBookAt — время последней публикации адресной книги
	LastAddressBookAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// QueueStats — количество задач по статусам.
type QueueStats struct {
	Todo       int
	InProgress int
	Done       int
	Error      int
}

// DrainResult — итог одного прохода по очереди.
type DrainResult struct {
	// RunID — идентификатор прохода (для корреляции логов)
	RunID       string
	Processed   int
	Succeeded   int
	Failed      int
	StartedAt   time.Time
	CompletedAt time.Time
}

// CascadeResult — итог синхронизации одной группы, запущенной каскадом.
type CascadeResult struct {
	GroupID string
	Err     error
}

// ReconcileResult — итог сверки одной учётной записи.
type ReconcileResult struct {
	UserID string
	Action SyncAction
	// AccountName — имя учётной записи Zimbra (login[-N]@domain)
	AccountName string
	// RemoteID — идентификатор учётной записи в Zimbra
	RemoteID string
	// Created — учётная запись создана в ходе сверки
	Created bool
	// Cascade — попытки синхронизации несинхронизированных групп
	Cascade []CascadeResult
}

// AddressBookResult — итог публикации адресной книги.
type AddressBookResult struct {
	RunID string
	// Target — адрес почтового ящика, в который опубликована книга
	Target   string
	Folders  int
	Contacts int
	// Skipped — дерево пустое, публикация не требовалась
	Skipped     bool
	StartedAt   time.Time
	CompletedAt time.Time
}
