package tasks

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_tasks_total",
			Help: "Tasks completed, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	activeTaskGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hive_active_task",
		Help: "1 while a task is running, 0 when the worker is idle.",
	})
)

func init() {
	prometheus.MustRegister(tasksTotal, activeTaskGauge)
}
