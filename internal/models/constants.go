package models

// Appointment statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Attendance values.
const (
	AttendancePending  = "pending"
	AttendanceAttended = "attended"
	AttendanceNoShow   = "no-show"
)

// Hold statuses and release reasons.
const (
	HoldActive   = "active"
	HoldReleased = "released"

	ReleaseConfirmed = "confirmed"
	ReleaseCancelled = "cancelled"
	ReleaseExpired   = "expired"
)

// Availability slot statuses and sources.
const (
	SlotHeld   = "held"
	SlotBooked = "booked"

	SourceAppointment = "appointment"
	SourceHold        = "hold"
)

// Collections that feed the availability index.
const (
	CollectionAppointments = "appointments"
	CollectionHolds        = "holds"
)

// Settings document keys.
const (
	SettingBusinessHours = "business_hours"
	SettingDayClosures   = "day_closures"
	SettingSpecialHours  = "special_hours"
)

const (
	// DateLayout формат календарной даты в API и настройках
	DateLayout = "2006-01-02"

	// MaxIdempotencyKeyLength ограничение длины ключа идемпотентности
	MaxIdempotencyKeyLength = 128

	// DefaultSlotStepMinutes шаг сетки стартов для выбора слота
	DefaultSlotStepMinutes = 15

	// ParseModeMarkdown режим разметки уведомлений
	ParseModeMarkdown = "Markdown"
)
