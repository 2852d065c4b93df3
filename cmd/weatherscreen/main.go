// Command weatherscreen is the interactive weather screen. It shows the weather for the
// current location on start, then reads city names from stdin, one per line.
// Enter ":q" or send EOF to quit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-screen/internal/app"
	"github.com/kjstillabower/weather-screen/internal/config"
	"github.com/kjstillabower/weather-screen/internal/observability"
	"github.com/kjstillabower/weather-screen/internal/render"
	"github.com/kjstillabower/weather-screen/internal/screen"
	"github.com/kjstillabower/weather-screen/internal/validation"
)

const quitCommand = ":q"

func main() {
	logger, err := observability.NewConsoleLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.FlushTelemetry(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger, printAlerts(os.Stdout))
	if err != nil {
		logger.Fatal("app", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("store close", zap.Error(err))
		}
	}()

	if err := run(ctx, a.Screen, os.Stdin, os.Stdout, clockwork.NewRealClock()); err != nil {
		logger.Error("screen", zap.Error(err))
	}
}

// printAlerts writes each alert as "[Title] message".
func printAlerts(out io.Writer) screen.Notifier {
	return screen.NotifierFunc(func(title, message string) {
		fmt.Fprintf(out, "[%s] %s\n", title, message)
	})
}

// run mounts the screen, then searches for each line read from in and redraws after
// every flow. It returns when in is exhausted, on ":q", or when ctx is done.
func run(ctx context.Context, s *screen.Screen, in io.Reader, out io.Writer, clock clockwork.Clock) error {
	draw := func() {
		fmt.Fprint(out, render.Screen(s.State(), clock.Now()))
		fmt.Fprint(out, "> ")
	}

	s.Mount(ctx)
	draw()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if strings.TrimSpace(line) == quitCommand {
				return nil
			}
			if validation.IsBlank(line) {
				draw()
				continue
			}
			_ = s.Search(ctx, line)
			draw()
		}
	}
}
