package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/loanapp/internal/domain"
)

type fakeProducer struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestReportSink_WriteReports(t *testing.T) {
	received := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	reports := []domain.ReceivedReport{
		{ID: "r1", ReceivedAt: received, Record: domain.ErrorRecord{Message: "a", Level: domain.LevelError, Context: domain.RecordContext{SessionID: "session-1"}}},
		{ID: "r2", ReceivedAt: received, Record: domain.ErrorRecord{Message: "b", Level: domain.LevelWarn}},
	}

	p := &fakeProducer{}
	sink := NewReportSink(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := sink.WriteReports(context.Background(), reports); err != nil {
		t.Fatal(err)
	}

	if len(p.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(p.msgs))
	}
	if string(p.msgs[0].Key) != "session-1" || string(p.msgs[1].Key) != "r2" {
		t.Errorf("unexpected keys: %q %q", p.msgs[0].Key, p.msgs[1].Key)
	}
	if !p.msgs[0].Time.Equal(received) {
		t.Errorf("Time = %v", p.msgs[0].Time)
	}

	var got domain.ReceivedReport
	if err := json.Unmarshal(p.msgs[1].Value, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "r2" || got.Record.Message != "b" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if h := p.msgs[1].Headers; len(h) != 2 || string(h[1].Value) != "warn" {
		t.Errorf("unexpected headers: %+v", h)
	}
}

func TestReportSink_ProducerError(t *testing.T) {
	p := &fakeProducer{err: errors.New("leader not available")}
	sink := NewReportSink(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := sink.WriteReports(context.Background(), []domain.ReceivedReport{{ID: "r1"}})
	if err == nil || !errors.Is(err, p.err) {
		t.Errorf("expected wrapped producer error, got %v", err)
	}
}

func TestReportSink_EmptyBatch(t *testing.T) {
	p := &fakeProducer{err: errors.New("should not be called")}
	sink := NewReportSink(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := sink.WriteReports(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
