package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// SyncStateRepository — интерфейс для таблицы sync_state (одна строка).
type SyncStateRepository interface {
	// Get возвращает текущее состояние синхронизации.
	Get(ctx context.Context) (*model.SyncState, error)
	// UpdateDrainAt обновляет время последнего разбора очереди.
	UpdateDrainAt(ctx context.Context, t time.Time) error
	// UpdateAddressBookAt обновляет время последней публикации адресной книги.
	UpdateAddressBookAt(ctx context.Context, t time.Time) error
}

type syncStateRepo struct {
	db DBTX
}

// NewSyncStateRepository создаёт репозиторий состояния синхронизации.
func NewSyncStateRepository(db DBTX) SyncStateRepository {
	return &syncStateRepo{db: db}
}

func (r *syncStateRepo) Get(ctx context.Context) (*model.SyncState, error) {
	query := `
		SELECT id, last_drain_at, last_addressbook_at, created_at, updated_at
		FROM sync_state
		WHERE id = 1`

	s := &model.SyncState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastDrainAt, &s.LastAddressBookAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sync_state: %w", err)
	}
	return s, nil
}

func (r *syncStateRepo) UpdateDrainAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_drain_at = $1, updated_at = now() WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_drain_at: %w", err)
	}
	return nil
}

func (r *syncStateRepo) UpdateAddressBookAt(ctx context.Context, t time.Time) error {
	query := `UPDATE sync_state SET last_addressbook_at = $1, updated_at = now() WHERE id = 1`
	if _, err := r.db.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("ошибка обновления last_addressbook_at: %w", err)
	}
	return nil
}
