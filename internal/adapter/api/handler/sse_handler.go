package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/domain"
)

const (
	sseEventName         = "error-record"
	defaultSSEBufferSize = 256
	sseKeepAlive         = 15 * time.Second
)

// RecordBroker streams captured error records to SSE clients. Publish is
// meant to be registered as an error logger observer.
type RecordBroker struct {
	logger    *slog.Logger
	clients   map[chan []byte]struct{}
	mu        sync.RWMutex
	records   chan domain.ErrorRecord
	keepAlive time.Duration
}

// NewRecordBroker creates a RecordBroker and starts its processing loop,
// which stops with ctx.
func NewRecordBroker(ctx context.Context, logger *slog.Logger, bufferSize int) *RecordBroker {
	if bufferSize <= 0 {
		bufferSize = defaultSSEBufferSize
	}
	broker := &RecordBroker{
		logger:    logger.With("component", "record_broker"),
		clients:   make(map[chan []byte]struct{}),
		records:   make(chan domain.ErrorRecord, bufferSize),
		keepAlive: sseKeepAlive,
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *RecordBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	messageChan := make(chan []byte, 16)
	b.addClient(messageChan)
	defer b.removeClient(messageChan)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			if msg == nil {
				fmt.Fprint(w, ": ping\n\n")
			} else {
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sseEventName, msg)
			}
			flusher.Flush()
		}
	}
}

// Publish queues a record for broadcast. It never blocks; records are
// dropped when the queue is full.
func (b *RecordBroker) Publish(record domain.ErrorRecord) {
	select {
	case b.records <- record:
	default:
		b.logger.Warn("record stream queue is full, dropping record")
	}
}

// Clients returns the number of connected clients.
func (b *RecordBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *RecordBroker) addClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
}

func (b *RecordBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

// broadcast sends msg to every client; a nil msg is a keep-alive.
func (b *RecordBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// slow client
		}
	}
}

func (b *RecordBroker) run(ctx context.Context) {
	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case record := <-b.records:
			data, err := json.Marshal(record)
			if err != nil {
				b.logger.Error("failed to marshal error record for SSE", "error", err)
				continue
			}
			b.broadcast(data)
		case <-ticker.C:
			b.broadcast(nil)
		}
	}
}
