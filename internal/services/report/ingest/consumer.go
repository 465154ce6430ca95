// Package ingest streams activity records from Kafka into storage.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
)

// Config captures the runtime tunables for the activity consumer.
type Config struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// messageSource is the slice of kafka.Reader the consumer depends on.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads activity events from Kafka and appends the valid ones to
// the activity store. Malformed events are logged and skipped; they never
// stall the stream.
type Consumer struct {
	cfg    Config
	source messageSource
	store  storage.ActivityStore
	logger *log.Logger
	poll   time.Duration
}

// NewConsumer builds a Kafka-backed activity consumer.
func NewConsumer(cfg Config, store storage.ActivityStore) (*Consumer, error) {
	if store == nil {
		return nil, errors.New("activity store must not be nil")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	return newConsumer(cfg, reader, store), nil
}

func newConsumer(cfg Config, source messageSource, store storage.ActivityStore) *Consumer {
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Consumer{
		cfg:    cfg,
		source: source,
		store:  store,
		logger: log.New(log.Writer(), "[INGEST] ", log.LstdFlags),
		poll:   poll,
	}
}

// Close shuts down the underlying Kafka reader.
func (c *Consumer) Close() error {
	if c == nil || c.source == nil {
		return nil
	}
	return c.source.Close()
}

// Run blocks until the context is cancelled or the reader is closed,
// consuming messages and appending validated activity records.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return errors.New("nil consumer")
	}

	c.logger.Printf("consuming topic %s group %s brokers %s",
		c.cfg.Topic, c.cfg.GroupID, strings.Join(c.cfg.Brokers, ","))
	defer c.logger.Printf("consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.source.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafka.ErrGroupClosed) {
				return nil
			}
			c.logger.Printf("fetch error: %v", err)
			continue
		}

		record, decodeErr := DecodeActivity(msg.Value)
		if decodeErr != nil {
			c.logger.Printf("decode error at offset %d: %v", msg.Offset, decodeErr)
		} else if err := record.Validate(); err != nil {
			c.logger.Printf("invalid activity %s at offset %d: %v", record.ID, msg.Offset, err)
		} else if err := c.store.Append(ctx, record); err != nil {
			c.logger.Printf("append %s failed: %v", record.ID, err)
			// Skip the commit so the record is retried on the next fetch.
			continue
		}

		commitCtx, commitCancel := context.WithTimeout(ctx, c.poll)
		if err := c.source.CommitMessages(commitCtx, msg); err != nil {
			if !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
				c.logger.Printf("commit error: %v", err)
			}
		}
		commitCancel()
	}
}

// activityEnvelope mirrors the fields required from the activity stream
// while tolerating additional fields in the payload.
type activityEnvelope struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory"`
	CO2Kg       json.RawMessage   `json:"co2Kg"`
	OccurredAt  json.RawMessage   `json:"occurredAt"`
	Metadata    map[string]string `json:"metadata"`
}

// DecodeActivity extracts an activity record from a raw event payload.
// Numeric fields accept JSON numbers or numeric strings; timestamps accept
// RFC 3339 strings or Unix epoch milliseconds.
func DecodeActivity(raw []byte) (activity.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var env activityEnvelope
	if err := dec.Decode(&env); err != nil {
		return activity.Record{}, fmt.Errorf("decode activity payload: %w", err)
	}

	co2, err := parseKg(env.CO2Kg)
	if err != nil {
		return activity.Record{}, err
	}
	occurredAt, err := parseTimestamp(env.OccurredAt)
	if err != nil {
		return activity.Record{}, err
	}

	return activity.Record{
		ID:          strings.TrimSpace(env.ID),
		UserID:      strings.TrimSpace(env.UserID),
		Category:    activity.Category(strings.TrimSpace(env.Category)),
		Subcategory: strings.TrimSpace(env.Subcategory),
		CO2Kg:       co2,
		OccurredAt:  occurredAt,
		Metadata:    env.Metadata,
	}, nil
}

func parseKg(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("co2Kg missing")
	}
	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		if f, err := asNumber.Float64(); err == nil {
			return f, nil
		}
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		trimmed := strings.TrimSpace(asString)
		if trimmed == "" {
			return 0, errors.New("co2Kg string empty")
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("parse co2Kg: %w", err)
		}
		return f, nil
	}
	return 0, errors.New("co2Kg format not recognized")
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, errors.New("occurredAt missing")
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		trimmed := strings.TrimSpace(asString)
		if trimmed == "" {
			return time.Time{}, errors.New("occurredAt string empty")
		}
		if ts, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			return ts.UTC(), nil
		}
		if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return ts.UTC(), nil
		}
		if millis, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return time.UnixMilli(millis).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("unsupported occurredAt string %q", trimmed)
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		if millis, err := asNumber.Int64(); err == nil {
			return time.UnixMilli(millis).UTC(), nil
		}
	}

	return time.Time{}, errors.New("occurredAt format not recognized")
}
