package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
)

// SyncQueueRepository — очередь задач синхронизации (таблица sync_queue).
type SyncQueueRepository interface {
	// ClaimNext атомарно переводит первую доступную задачу в IN_PROGRESS
	// и возвращает её; nil, если доступных задач нет.
	// Доступны задачи TODO и, если staleBefore не nil, задачи IN_PROGRESS,
	// захваченные раньше staleBefore.
	ClaimNext(ctx context.Context, staleBefore *time.Time) (*model.SyncJob, error)
	// Complete записывает итоговый статус (DONE или ERROR) и лог.
	// Задача с ID == 0 не записывается.
	Complete(ctx context.Context, job *model.SyncJob, status model.SyncStatus, logs string) error
	// Enqueue добавляет задачу в статусе TODO.
	Enqueue(ctx context.Context, userID string, action model.SyncAction) (*model.SyncJob, error)
	// CountByStatus возвращает количество задач по статусам.
	CountByStatus(ctx context.Context) (*model.QueueStats, error)
	// ResetStale возвращает в TODO задачи IN_PROGRESS, захваченные раньше before.
	ResetStale(ctx context.Context, before time.Time) (int64, error)
}

type syncQueueRepo struct {
	db DBTX
}

// NewSyncQueueRepository создаёт репозиторий очереди.
func NewSyncQueueRepository(db DBTX) SyncQueueRepository {
	return &syncQueueRepo{db: db}
}

// claimQuery — захват одной строки одним выражением: строки, заблокированные
// конкурентным захватом, пропускаются (SKIP LOCKED).
const claimQuery = `
	UPDATE sync_queue
	SET status = 'IN_PROGRESS', claimed_at = now()
	WHERE id = (
		SELECT id FROM sync_queue
		WHERE status = 'TODO'
		   OR (status = 'IN_PROGRESS' AND $1::timestamptz IS NOT NULL AND claimed_at < $1::timestamptz)
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING id, id_user, action_type, status, COALESCE(logs, ''), claimed_at`

func (r *syncQueueRepo) ClaimNext(ctx context.Context, staleBefore *time.Time) (*model.SyncJob, error) {
	job, err := scanJob(r.db.QueryRow(ctx, claimQuery, staleBefore))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка захвата задачи: %w", err)
	}
	return job, nil
}

func (r *syncQueueRepo) Complete(ctx context.Context, job *model.SyncJob, status model.SyncStatus, logs string) error {
	if job == nil || job.ID == 0 {
		return nil
	}
	if status != model.StatusDone && status != model.StatusError {
		return fmt.Errorf("недопустимый итоговый статус %q", status)
	}

	query := `
		UPDATE sync_queue
		SET status = $2, logs = NULLIF($3, ''), completed_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, job.ID, string(status), logs)
	if err != nil {
		return fmt.Errorf("ошибка завершения задачи %d: %w", job.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("задача %d: %w", job.ID, ErrNotFound)
	}
	job.Status = status
	job.Logs = logs
	return nil
}

func (r *syncQueueRepo) Enqueue(ctx context.Context, userID string, action model.SyncAction) (*model.SyncJob, error) {
	query := `
		INSERT INTO sync_queue (id_user, action_type)
		VALUES ($1, $2)
		RETURNING id, id_user, action_type, status, COALESCE(logs, ''), claimed_at`

	job, err := scanJob(r.db.QueryRow(ctx, query, userID, string(action)))
	if err != nil {
		return nil, fmt.Errorf("ошибка добавления задачи: %w", err)
	}
	return job, nil
}

func (r *syncQueueRepo) CountByStatus(ctx context.Context) (*model.QueueStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, count(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта задач: %w", err)
	}
	defer rows.Close()

	stats := &model.QueueStats{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования статистики: %w", err)
		}
		switch model.SyncStatus(status) {
		case model.StatusTodo:
			stats.Todo = n
		case model.StatusInProgress:
			stats.InProgress = n
		case model.StatusDone:
			stats.Done = n
		case model.StatusError:
			stats.Error = n
		}
	}
	return stats, rows.Err()
}

func (r *syncQueueRepo) ResetStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE sync_queue
		SET status = 'TODO', claimed_at = NULL
		WHERE status = 'IN_PROGRESS' AND claimed_at < $1`

	tag, err := r.db.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка сброса зависших задач: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.SyncJob, error) {
	var (
		job    model.SyncJob
		action string
		status string
	)
	if err := row.Scan(&job.ID, &job.UserID, &action, &status, &job.Logs, &job.ClaimedAt); err != nil {
		return nil, err
	}
	job.Action = model.SyncAction(action)
	job.Status = model.SyncStatus(status)
	return &job, nil
}
