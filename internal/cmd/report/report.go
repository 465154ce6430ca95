// Package report parses report service flags and launches the HTTP API.
package report

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	entrypoint "github.com/louisbranch/carbontrace/internal/platform/cmd"
	"github.com/louisbranch/carbontrace/internal/services/report/api"
	"github.com/louisbranch/carbontrace/internal/services/report/app"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
	"github.com/louisbranch/carbontrace/internal/services/report/storage/memory"
	"github.com/louisbranch/carbontrace/internal/services/report/storage/sqlite"
)

// Config holds report command configuration.
type Config struct {
	Port      int    `env:"CARBONTRACE_REPORT_PORT" envDefault:"8080"`
	DBPath    string `env:"CARBONTRACE_REPORT_DB_PATH"`
	Timezone  string `env:"CARBONTRACE_TIMEZONE" envDefault:"UTC"`
	WeekStart string `env:"CARBONTRACE_WEEK_START" envDefault:"monday"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The report HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty for in-memory)")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "IANA timezone for report windows")
	fs.StringVar(&cfg.WeekStart, "week-start", cfg.WeekStart, "First day of the week (monday or sunday)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Calendar builds the bucketing calendar the config describes.
func (c Config) Calendar() (bucket.Calendar, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return bucket.Calendar{}, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	weekStart, err := parseWeekStart(c.WeekStart)
	if err != nil {
		return bucket.Calendar{}, err
	}
	return bucket.New(loc, weekStart), nil
}

func parseWeekStart(value string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "monday":
		return time.Monday, nil
	case "sunday":
		return time.Sunday, nil
	default:
		return time.Monday, fmt.Errorf("unsupported week start %q", value)
	}
}

// OpenStore opens SQLite storage when a path is configured, falling back to
// the in-memory store otherwise.
func OpenStore(dbPath string) (storage.Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		log.Printf("no database path configured, using in-memory storage")
		return memory.New(), nil
	}
	return sqlite.Open(dbPath)
}

// Run starts the report HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReport, func(ctx context.Context) error {
		cal, err := cfg.Calendar()
		if err != nil {
			return err
		}

		store, err := OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		svc := app.New(store, app.Options{Calendar: cal})
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           api.NewServer(svc).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("report API listening on %s", server.Addr)
			errCh <- server.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	})
}
