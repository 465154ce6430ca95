// Package ingest parses ingest flags and launches the Kafka activity consumer.
package ingest

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	reportcmd "github.com/louisbranch/carbontrace/internal/cmd/report"
	entrypoint "github.com/louisbranch/carbontrace/internal/platform/cmd"
	"github.com/louisbranch/carbontrace/internal/services/report/ingest"
)

// Config holds ingest command configuration.
type Config struct {
	Brokers     string        `env:"CARBONTRACE_KAFKA_BROKERS" envDefault:"localhost:9092"`
	Topic       string        `env:"CARBONTRACE_ACTIVITY_TOPIC" envDefault:"carbontrace.activities"`
	GroupID     string        `env:"CARBONTRACE_INGEST_GROUP" envDefault:"carbontrace-ingest"`
	PollTimeout time.Duration `env:"CARBONTRACE_INGEST_POLL_TIMEOUT" envDefault:"5s"`
	DBPath      string        `env:"CARBONTRACE_REPORT_DB_PATH"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Brokers, "brokers", cfg.Brokers, "Comma-separated Kafka broker addresses")
	fs.StringVar(&cfg.Topic, "topic", cfg.Topic, "Activity event topic")
	fs.StringVar(&cfg.GroupID, "group", cfg.GroupID, "Kafka consumer group")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty for in-memory)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// BrokerList splits the configured broker string.
func (c Config) BrokerList() []string {
	parts := strings.Split(c.Brokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

// Run starts the Kafka activity consumer.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceIngest, func(ctx context.Context) error {
		store, err := reportcmd.OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		consumer, err := ingest.NewConsumer(ingest.Config{
			Brokers:     cfg.BrokerList(),
			Topic:       cfg.Topic,
			GroupID:     cfg.GroupID,
			PollTimeout: cfg.PollTimeout,
		}, store)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Printf("close consumer: %v", err)
			}
		}()

		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	})
}
