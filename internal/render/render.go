// Package render draws the weather screen as plain text.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kjstillabower/weather-screen/internal/screen"
)

const title = "Weather"

// Screen renders st. now is used for the age of cached data.
func Screen(st screen.State, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)

	input := st.City
	if input == "" {
		input = "Enter city name..."
	}
	fmt.Fprintf(&b, "City: [%s]\n", input)

	if st.Loading {
		b.WriteString("\nLoading...\n")
		return b.String()
	}

	rec := st.Weather
	if rec == nil || rec.Main == nil {
		return b.String()
	}

	fmt.Fprintf(&b, "\n%s\n", rec.Name)
	fmt.Fprintf(&b, "%d°C\n", Round(rec.Main.Temp))
	fmt.Fprintf(&b, "%s\n", rec.Description())
	fmt.Fprintf(&b, "Humidity: %d%%\n", rec.Main.Humidity)
	fmt.Fprintf(&b, "Feels like: %d°C\n", Round(rec.Main.FeelsLike))

	if st.Source == screen.SourceCached {
		if st.UpdatedAt.IsZero() {
			b.WriteString("(cached)\n")
		} else {
			fmt.Fprintf(&b, "(cached, updated %s)\n", Age(now.Sub(st.UpdatedAt)))
		}
	}
	return b.String()
}

// Round rounds half up (2.5 -> 3, -2.5 -> -2).
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

// Age formats d coarsely: "just now", "5m ago", "3h ago", "2d ago".
func Age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
