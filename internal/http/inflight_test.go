package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestInFlightTracker_Count(t *testing.T) {
	tests := []struct {
		name string
		inc  int
		dec  int
		want int64
	}{
		{"idle", 0, 0, 0},
		{"two open", 2, 0, 2},
		{"one of two closed", 2, 1, 1},
		{"all closed", 3, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &InFlightTracker{}
			for i := 0; i < tt.inc; i++ {
				tracker.Increment()
			}
			for i := 0; i < tt.dec; i++ {
				tracker.Decrement()
			}
			if got := tracker.Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestWaitForInFlight_WaitsForHandler holds a request open inside MetricsMiddleware and
// checks that WaitForInFlight returns only once the handler finishes.
func TestWaitForInFlight_WaitsForHandler(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/screen/refresh", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}).Methods(http.MethodPost)

	served := make(chan struct{})
	go func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/screen/refresh", nil))
		close(served)
	}()
	<-entered

	if got := InFlightCount(); got != 1 {
		t.Errorf("InFlightCount() = %d, want 1", got)
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(short, 5*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForInFlight() with open request = %v, want DeadlineExceeded", err)
	}

	close(release)
	<-served

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := WaitForInFlight(ctx, 5*time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() after handler returned = %v, want nil", err)
	}
}

func TestInFlightTracker_WaitForZero_Canceled(t *testing.T) {
	tracker := &InFlightTracker{}
	tracker.Increment()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.WaitForZero(ctx, 5*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("WaitForZero() = %v, want context.Canceled", err)
	}
}
