package repository

import (
	"context"
	"fmt"
)

// SyncedGroupRepository — группы, для которых создан список рассылки.
type SyncedGroupRepository interface {
	// ListUnsynced возвращает те из groupIDs, для которых список рассылки ещё не создан.
	ListUnsynced(ctx context.Context, groupIDs []string) ([]string, error)
	// MarkSynced отмечает группу синхронизированной.
	MarkSynced(ctx context.Context, groupID, dlName string) error
}

type syncedGroupRepo struct {
	db DBTX
}

// NewSyncedGroupRepository создаёт репозиторий синхронизированных групп.
func NewSyncedGroupRepository(db DBTX) SyncedGroupRepository {
	return &syncedGroupRepo{db: db}
}

func (r *syncedGroupRepo) ListUnsynced(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT g.id
		FROM unnest($1::text[]) AS g(id)
		WHERE NOT EXISTS (SELECT 1 FROM synced_groups s WHERE s.group_id = g.id)
		ORDER BY g.id`

	rows, err := r.db.Query(ctx, query, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска несинхронизированных групп: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *syncedGroupRepo) MarkSynced(ctx context.Context, groupID, dlName string) error {
	query := `
		INSERT INTO synced_groups (group_id, dl_name)
		VALUES ($1, $2)
		ON CONFLICT (group_id) DO UPDATE SET dl_name = EXCLUDED.dl_name, synced_at = now()`

	if _, err := r.db.Exec(ctx, query, groupID, dlName); err != nil {
		return fmt.Errorf("ошибка отметки группы %s: %w", groupID, err)
	}
	return nil
}
