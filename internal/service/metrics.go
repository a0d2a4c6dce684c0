package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zs_queue_jobs_total",
		Help: "Количество обработанных задач очереди по действию и итоговому статусу",
	}, []string{"action", "status"})

	queueDrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zs_queue_drain_duration_seconds",
		Help:    "Длительность одного прохода по очереди",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s … ~205s
	})

	addressBookSyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zs_addressbook_sync_duration_seconds",
		Help:    "Длительность публикации адресной книги",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s … ~256s
	}, []string{"variant"})
)
