// queue_drain.go — последовательный разбор очереди sync_queue.
//
// QueueDrainService захватывает задачи по одной (ClaimNext), передаёт их
// в JobReconciler и записывает итог (DONE/ERROR). Ошибка задачи не прерывает
// проход; ошибка захвата завершает проход, следующий тик начнёт заново.
// Одновременно выполняется не более одного прохода: повторный запуск
// отклоняется с ErrDrainInProgress.
//
// Prometheus-метрики:
//   - zs_queue_jobs_total{action,status}
//   - zs_queue_drain_duration_seconds
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/zimbra-sync/internal/domain/model"
	"github.com/bigkaa/zimbra-sync/internal/repository"
)

// JobReconciler обрабатывает одну задачу очереди.
type JobReconciler interface {
	Reconcile(ctx context.Context, job *model.SyncJob) (*model.ReconcileResult, error)
}

// QueueDrainService — фоновый разбор очереди синхронизации.
type QueueDrainService struct {
	queue        repository.SyncQueueRepository
	state        repository.SyncStateRepository
	reconciler   JobReconciler
	interval     time.Duration
	staleTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger

	running atomic.Bool
	async   sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueueDrainService создаёт сервис разбора очереди.
// staleTimeout — возраст IN_PROGRESS задачи, после которого она захватывается
// повторно; 0 отключает повторный захват.
func NewQueueDrainService(
	queue repository.SyncQueueRepository,
	state repository.SyncStateRepository,
	reconciler JobReconciler,
	interval time.Duration,
	staleTimeout time.Duration,
	logger *slog.Logger,
) *QueueDrainService {
	return &QueueDrainService{
		queue:        queue,
		state:        state,
		reconciler:   reconciler,
		interval:     interval,
		staleTimeout: staleTimeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "queue_drain")),
		baseCtx:      context.Background(),
	}
}

// Start запускает периодический разбор очереди.
func (s *QueueDrainService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.baseCtx = ctx
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодический разбор очереди запущен",
			slog.String("interval", s.interval.String()),
			slog.String("stale_timeout", s.staleTimeout.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодический разбор очереди остановлен")
				return
			case <-ticker.C:
				result, err := s.DrainNow(ctx)
				switch {
				case errors.Is(err, ErrDrainInProgress):
					s.logger.Debug("Разбор очереди уже выполняется, тик пропущен")
				case err != nil:
					s.logger.Error("Ошибка разбора очереди",
						slog.String("error", err.Error()),
					)
				case result.Processed > 0:
					s.logger.Info("Разбор очереди завершён",
						slog.String("run_id", result.RunID),
						slog.Int("processed", result.Processed),
						slog.Int("failed", result.Failed),
					)
				}
			}
		}
	}()
}

// Stop останавливает периодический разбор и ждёт завершения запущенных проходов.
// Текущая задача дорабатывается до конца.
func (s *QueueDrainService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.async.Wait()
}

// Running сообщает, выполняется ли сейчас проход.
func (s *QueueDrainService) Running() bool {
	return s.running.Load()
}

// TryStartAsync запускает проход в фоне. false — проход уже выполняется.
func (s *QueueDrainService) TryStartAsync() (runID string, started bool) {
	if !s.running.CompareAndSwap(false, true) {
		return "", false
	}
	runID = uuid.NewString()

	s.async.Add(1)
	go func() {
		defer s.async.Done()
		defer s.running.Store(false)

		result, err := s.drain(s.baseCtx, runID)
		if err != nil {
			s.logger.Error("Ошибка разбора очереди",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Info("Разбор очереди завершён",
			slog.String("run_id", runID),
			slog.Int("processed", result.Processed),
			slog.Int("failed", result.Failed),
		)
	}()
	return runID, true
}

// DrainNow выполняет проход синхронно: задачи захватываются, пока очередь
// не опустеет. Возвращает ErrDrainInProgress, если проход уже выполняется.
func (s *QueueDrainService) DrainNow(ctx context.Context) (*model.DrainResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer s.running.Store(false)
	return s.drain(ctx, uuid.NewString())
}

func (s *QueueDrainService) drain(ctx context.Context, runID string) (*model.DrainResult, error) {
	timer := prometheus.NewTimer(queueDrainDuration)
	defer timer.ObserveDuration()

	logger := s.logger.With(slog.String("run_id", runID))
	result := &model.DrainResult{RunID: runID, StartedAt: s.now().UTC()}

	for {
		// Остановка только между задачами
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("разбор очереди прерван: %w", err)
		}

		job, err := s.queue.ClaimNext(ctx, s.staleBefore())
		if err != nil {
			return result, fmt.Errorf("захват задачи: %w", err)
		}
		if job == nil {
			break
		}

		result.Processed++
		if s.process(context.WithoutCancel(ctx), logger, job) {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	result.CompletedAt = s.now().UTC()
	if err := s.state.UpdateDrainAt(ctx, result.CompletedAt); err != nil {
		logger.Warn("Ошибка обновления last_drain_at", slog.String("error", err.Error()))
	}
	return result, nil
}

func (s *QueueDrainService) staleBefore() *time.Time {
	if s.staleTimeout <= 0 {
		return nil
	}
	t := s.now().Add(-s.staleTimeout)
	return &t
}

// process выполняет задачу и записывает итог. true — задача выполнена успешно.
func (s *QueueDrainService) process(ctx context.Context, logger *slog.Logger, job *model.SyncJob) bool {
	logger = logger.With(
		slog.Int64("job_id", job.ID),
		slog.String("user_id", job.UserID),
		slog.String("action", string(job.Action)),
	)

	status, logs := model.StatusDone, ""
	result, err := s.reconciler.Reconcile(ctx, job)
	if err != nil {
		status, logs = model.StatusError, err.Error()
		logger.Warn("Ошибка синхронизации учётной записи", slog.String("error", logs))
	} else {
		failedCascade := 0
		for _, c := range result.Cascade {
			if c.Err != nil {
				failedCascade++
			}
		}
		logger.Info("Учётная запись синхронизирована",
			slog.String("account", result.AccountName),
			slog.Bool("created", result.Created),
			slog.Int("cascade", len(result.Cascade)),
			slog.Int("cascade_failed", failedCascade),
		)
	}

	queueJobsTotal.WithLabelValues(string(job.Action), string(status)).Inc()
	if cerr := s.queue.Complete(ctx, job, status, logs); cerr != nil {
		logger.Error("Ошибка записи итога задачи", slog.String("error", cerr.Error()))
	}
	return err == nil
}

// Enqueue добавляет задачу в очередь. Задача будет выполнена ближайшим проходом.
func (s *QueueDrainService) Enqueue(ctx context.Context, userID string, action model.SyncAction) (*model.SyncJob, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId обязателен", ErrValidation)
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: неизвестное действие %q", ErrValidation, action)
	}
	return s.queue.Enqueue(ctx, userID, action)
}

// Stats возвращает количество задач по статусам.
func (s *QueueDrainService) Stats(ctx context.Context) (*model.QueueStats, error) {
	return s.queue.CountByStatus(ctx)
}

// State возвращает время последних проходов.
func (s *QueueDrainService) State(ctx context.Context) (*model.SyncState, error) {
	return s.state.Get(ctx)
}

// ResetStale возвращает в TODO задачи, захваченные раньше чем olderThan назад.
func (s *QueueDrainService) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: olderThan должен быть положительным", ErrValidation)
	}
	n, err := s.queue.ResetStale(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Зависшие задачи возвращены в очередь", slog.Int64("count", n))
	}
	return n, nil
}
