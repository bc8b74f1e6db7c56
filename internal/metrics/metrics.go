package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	holdsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "holds_created_total",
		Help:      "Holds written to the store.",
	})

	slotConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflicts_total",
			Help:      "Rejected reservations by stage (precheck, hold, confirm).",
		},
		[]string{"stage"},
	)

	appointmentsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "appointments_confirmed_total",
		Help:      "Appointments written by the appointment writer.",
	})

	sweepHoldsReleased = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_holds_released_total",
		Help:      "Expired holds released by the sweeper.",
	})

	sweepSlotsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_slots_deleted_total",
		Help:      "Availability slots deleted by the sweeper.",
	})

	attendanceCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_completed_total",
		Help:      "Past appointments completed by the attendance sweep.",
	})

	indexSync = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_sync_tasks_total",
			Help:      "Availability index sync tasks by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			holdsCreated,
			slotConflicts,
			appointmentsConfirmed,
			sweepHoldsReleased,
			sweepSlotsDeleted,
			attendanceCompleted,
			indexSync,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncHoldCreated() {
	holdsCreated.Inc()
}

func IncSlotConflict(stage string) {
	slotConflicts.WithLabelValues(stage).Inc()
}

func IncAppointmentConfirmed() {
	appointmentsConfirmed.Inc()
}

// AddSweep records one sweeper run.
func AddSweep(holdsReleased, slotsDeleted int) {
	sweepHoldsReleased.Add(float64(holdsReleased))
	sweepSlotsDeleted.Add(float64(slotsDeleted))
}

func AddAttendanceCompleted(n int) {
	attendanceCompleted.Add(float64(n))
}

// IncIndexSync counts a sync task outcome: applied, retry, failed.
func IncIndexSync(result string) {
	indexSync.WithLabelValues(result).Inc()
}
