// Package kafka publishes collected error reports to a Kafka topic for
// downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/loanapp/internal/domain"
)

// Producer is the subset of *kafka.Writer the sink needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ReportSink implements domain.ReportSink on a Kafka topic. Messages are
// keyed by session id so one session's reports stay ordered.
type ReportSink struct {
	producer Producer
	logger   *slog.Logger
}

// NewWriter creates a synchronous writer that waits for all replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewReportSink creates a sink publishing through producer.
func NewReportSink(producer Producer, logger *slog.Logger) *ReportSink {
	return &ReportSink{producer: producer, logger: logger.With("component", "kafka_report_sink")}
}

// WriteReports publishes the batch in one call. Either all messages are
// accepted or the batch is reported as failed.
func (s *ReportSink) WriteReports(ctx context.Context, reports []domain.ReceivedReport) error {
	if len(reports) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(reports))
	for _, rep := range reports {
		msg, err := reportMessage(rep)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := s.producer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish error reports: %w", err)
	}
	s.logger.Debug("published error reports", "count", len(msgs))
	return nil
}

func reportMessage(rep domain.ReceivedReport) (kafka.Message, error) {
	value, err := json.Marshal(rep)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal report %s: %w", rep.ID, err)
	}
	key := rep.Record.Context.SessionID
	if key == "" {
		key = rep.ID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  rep.ReceivedAt,
		Headers: []kafka.Header{
			{Key: "report_id", Value: []byte(rep.ID)},
			{Key: "level", Value: []byte(rep.Record.Level)},
		},
	}, nil
}
