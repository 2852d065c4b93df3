package screen

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Alert titles and messages shown to the user.
const (
	TitlePermissionRequired = "Permission Required"
	TitleError              = "Error"
	TitleNoResults          = "No Results"

	MsgAllowLocation        = "Please allow location access"
	MsgLocationNotAvailable = "Location not available"
	MsgCityNotFound         = "City not found"
	MsgProblemFetching      = "Problem fetching data"
)

// Notifier shows a blocking alert to the user.
type Notifier interface {
	Alert(title, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(title, message string)

func (f NotifierFunc) Alert(title, message string) { f(title, message) }

// Alert is one recorded notification.
type Alert struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// AlertLog is a Notifier that keeps the most recent alerts for front ends that cannot
// block on a dialog.
type AlertLog struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	limit  int
	alerts []Alert
}

// NewAlertLog keeps at most limit alerts (minimum 1). A nil clock uses real time.
func NewAlertLog(limit int, clock clockwork.Clock) *AlertLog {
	if limit < 1 {
		limit = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AlertLog{clock: clock, limit: limit}
}

func (l *AlertLog) Alert(title, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alerts = append(l.alerts, Alert{Title: title, Message: message, At: l.clock.Now()})
	if len(l.alerts) > l.limit {
		l.alerts = l.alerts[len(l.alerts)-l.limit:]
	}
}

// Recent returns the recorded alerts, oldest first.
func (l *AlertLog) Recent() []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Alert, len(l.alerts))
	copy(out, l.alerts)
	return out
}
