// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 秒杀核心链路的计数器，/metrics 端点由 bootstrap 暴露
var (
	ResultEventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eshop",
		Subsystem: "flashsale",
		Name:      "result_events_handled_total",
		Help:      "Create-result events handled, labelled by outcome.",
	}, []string{"outcome"}) // created / duplicate / conflict / error

	LockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eshop",
		Subsystem: "flashsale",
		Name:      "lock_conflicts_total",
		Help:      "Distributed lock acquisitions that timed out.",
	})

	InventoryRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eshop",
		Subsystem: "flashsale",
		Name:      "inventory_rollbacks_total",
		Help:      "Compensating inventory rollbacks, labelled by outcome.",
	}, []string{"outcome"}) // applied / rejected / error

	OutboxTasksRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eshop",
		Subsystem: "flashsale",
		Name:      "outbox_tasks_relayed_total",
		Help:      "Outbox tasks processed by the relay worker.",
	}, []string{"outcome"}) // done / retried / dead
)
