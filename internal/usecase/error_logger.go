package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/loanapp/internal/adapter/metrics"
	"github.com/V4T54L/loanapp/internal/adapter/pii"
	"github.com/V4T54L/loanapp/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// Channel names one delivery target of the ErrorLogger.
type Channel string

const (
	ChannelConsole    Channel = "console"
	ChannelLocalStore Channel = "localStore"
	ChannelAPI        Channel = "api"
	ChannelSentry     Channel = "sentry"
)

const (
	defaultMaxLocalEntries = 50
	defaultFlushTimeout    = 2 * time.Second
)

// LoggerConfig selects the channels of an ErrorLogger. It is fixed at
// construction.
type LoggerConfig struct {
	EnableConsole    bool
	EnableLocalStore bool
	EnableAPI        bool
	EnableSentry     bool

	APIEndpoint        string
	MaxLocalEntries    int
	Level              domain.Level
	SentryFlushTimeout time.Duration
}

// DefaultLoggerConfig returns console and local store enabled, capacity 50,
// level error.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		EnableConsole:      true,
		EnableLocalStore:   true,
		MaxLocalEntries:    defaultMaxLocalEntries,
		Level:              domain.LevelError,
		SentryFlushTimeout: defaultFlushTimeout,
	}
}

// Validate rejects unknown levels and negative capacities.
func (c LoggerConfig) Validate() error {
	if c.Level != "" {
		if _, err := domain.ParseLevel(string(c.Level)); err != nil {
			return err
		}
	}
	if c.MaxLocalEntries < 0 {
		return fmt.Errorf("max local entries must not be negative, got %d", c.MaxLocalEntries)
	}
	return nil
}

// Observer receives every normalized record.
type Observer func(record domain.ErrorRecord)

// Option configures optional collaborators of an ErrorLogger.
type Option func(*ErrorLogger)

// WithConsole sets the console channel.
func WithConsole(c domain.ConsoleChannel) Option {
	return func(l *ErrorLogger) { l.console = c }
}

// WithRemote sets the HTTP channel used for API delivery.
func WithRemote(r domain.RemoteChannel) Option {
	return func(l *ErrorLogger) { l.remote = r }
}

// WithEventChannel sets the error-tracker channel.
func WithEventChannel(e domain.EventChannel) Option {
	return func(l *ErrorLogger) { l.events = e }
}

// WithRedactor masks PII in record extras before any channel sees them.
func WithRedactor(r *pii.Redactor) Option {
	return func(l *ErrorLogger) { l.redactor = r }
}

func WithMetrics(m *metrics.LoggerMetrics) Option {
	return func(l *ErrorLogger) { l.metrics = m }
}

// WithObserver registers a callback for every normalized record.
func WithObserver(o Observer) Option {
	return func(l *ErrorLogger) { l.observers = append(l.observers, o) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *ErrorLogger) { l.now = now }
}

// LogOption adjusts a single Log call.
type LogOption func(*logCall)

type logCall struct {
	channels           map[Channel]bool
	endpoint           string
	localWithoutRemote bool
}

// OnlyChannels replaces the enabled channel set for this call.
func OnlyChannels(channels ...Channel) LogOption {
	return func(c *logCall) {
		c.channels = make(map[Channel]bool, len(channels))
		for _, ch := range channels {
			c.channels[ch] = true
		}
	}
}

// WithEndpoint overrides the API endpoint for this call. Empty keeps the
// configured one.
func WithEndpoint(endpoint string) LogOption {
	return func(c *logCall) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// StoreWhenUnroutable makes the API channel write the record to the local
// store when the call resolves no endpoint or no remote reporter is set.
func StoreWhenUnroutable() LogOption {
	return func(c *logCall) { c.localWithoutRemote = true }
}

// Delivery is the pending outcome of one Log call.
type Delivery struct {
	record domain.ErrorRecord
	done   chan struct{}
}

// Record returns the normalized record. It is available immediately.
func (d *Delivery) Record() domain.ErrorRecord { return d.record }

// Done is closed once every channel attempt has settled.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Wait blocks until delivery settled and returns the record.
func (d *Delivery) Wait() domain.ErrorRecord {
	<-d.done
	return d.record
}

// Export is a downloadable snapshot of the local store.
type Export struct {
	Filename string
	Data     []byte
}

// ErrorLogger normalizes failures into records and fans them out to the
// configured channels. Delivery problems never reach the caller: they are
// logged, counted, and API failures are redirected into the local store.
type ErrorLogger struct {
	cfg      LoggerConfig
	store    domain.LogStore
	sessions *SessionTracker
	logger   *slog.Logger

	console   domain.ConsoleChannel
	remote    domain.RemoteChannel
	events    domain.EventChannel
	redactor  *pii.Redactor
	metrics   *metrics.LoggerMetrics
	observers []Observer
	now       func() time.Time

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewErrorLogger creates an ErrorLogger. store and sessions may be nil; the
// local channel and the auxiliary operations then do nothing.
func NewErrorLogger(cfg LoggerConfig, store domain.LogStore, sessions *SessionTracker, logger *slog.Logger, opts ...Option) (*ErrorLogger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid error logger config: %w", err)
	}
	if cfg.Level == "" {
		cfg.Level = domain.LevelError
	}
	if cfg.MaxLocalEntries == 0 {
		cfg.MaxLocalEntries = defaultMaxLocalEntries
	}
	if cfg.SentryFlushTimeout <= 0 {
		cfg.SentryFlushTimeout = defaultFlushTimeout
	}

	l := &ErrorLogger{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		logger:   logger.With("component", "error_logger"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the configuration in effect.
func (l *ErrorLogger) Config() LoggerConfig { return l.cfg }

// FormatError turns a raw failure plus caller fields into a record.
func (l *ErrorLogger) FormatError(ctx context.Context, failure any, fields domain.Fields) domain.ErrorRecord {
	message, name, stack := describeFailure(failure)
	env := EnvironmentFrom(ctx)

	rc := domain.RecordContext{
		UserAgent: env.UserAgent,
		URL:       env.URL,
		UserID:    domain.AnonymousUser,
		Component: domain.UnknownValue,
		Action:    domain.UnknownValue,
		Extra:     domain.CopyExtra(fields.Extra),
	}
	if fields.UserID != "" {
		rc.UserID = fields.UserID
	}
	if fields.SessionID != "" {
		rc.SessionID = fields.SessionID
	} else {
		rc.SessionID = l.sessions.ID(ctx)
	}
	if fields.Component != "" {
		rc.Component = fields.Component
	}
	if fields.Action != "" {
		rc.Action = fields.Action
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		if rc.Extra == nil {
			rc.Extra = make(map[string]any, 2)
		}
		if _, ok := rc.Extra["traceId"]; !ok {
			rc.Extra["traceId"] = sc.TraceID().String()
			rc.Extra["spanId"] = sc.SpanID().String()
		}
	}

	return domain.ErrorRecord{
		Timestamp: l.now().UTC(),
		Level:     l.cfg.Level,
		Message:   message,
		Stack:     stack,
		Name:      name,
		Context:   rc,
	}
}

// Log captures a failure. The record is built synchronously; channels are
// attempted in the background, detached from ctx cancellation.
func (l *ErrorLogger) Log(ctx context.Context, failure any, fields domain.Fields, opts ...LogOption) *Delivery {
	call := l.newCall(opts)
	record := l.FormatError(ctx, failure, fields)
	l.redactor.RedactRecord(&record)

	if l.metrics != nil {
		l.metrics.RecordsTotal.WithLabelValues(string(record.Level)).Inc()
	}
	for _, o := range l.observers {
		l.notify(o, record)
	}

	d := &Delivery{record: record, done: make(chan struct{})}
	dctx := context.WithoutCancel(ctx)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.deliver(dctx, record, call, d)
		return d
	}
	l.inflight.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.inflight.Done()
		l.deliver(dctx, record, call, d)
	}()
	return d
}

func (l *ErrorLogger) newCall(opts []LogOption) *logCall {
	call := &logCall{
		channels: map[Channel]bool{
			ChannelConsole:    l.cfg.EnableConsole,
			ChannelLocalStore: l.cfg.EnableLocalStore,
			ChannelAPI:        l.cfg.EnableAPI,
			ChannelSentry:     l.cfg.EnableSentry,
		},
		endpoint: l.cfg.APIEndpoint,
	}
	for _, opt := range opts {
		opt(call)
	}
	return call
}

func (l *ErrorLogger) deliver(ctx context.Context, record domain.ErrorRecord, call *logCall, d *Delivery) {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("error delivery panicked", "panic", r)
		}
	}()

	if call.channels[ChannelConsole] {
		l.writeConsole(record)
	}
	if call.channels[ChannelLocalStore] {
		l.saveLocal(ctx, record)
	}
	if call.channels[ChannelAPI] {
		if call.localWithoutRemote && (call.endpoint == "" || l.remote == nil) {
			l.saveLocal(ctx, record)
		} else {
			l.sendRemote(ctx, call.endpoint, record)
		}
	}
	if call.channels[ChannelSentry] {
		l.capture(ctx, record)
	}
}

func (l *ErrorLogger) writeConsole(record domain.ErrorRecord) {
	if l.console == nil {
		return
	}
	if err := l.console.Write(record); err != nil {
		l.logger.Warn("failed to write error record to console", "error", err)
		l.channelFailed(ChannelConsole)
	}
}

func (l *ErrorLogger) saveLocal(ctx context.Context, record domain.ErrorRecord) bool {
	if l.store == nil {
		return false
	}
	if err := l.store.Append(ctx, record, l.cfg.MaxLocalEntries); err != nil {
		l.logger.Error("failed to save error record to local store", "error", err)
		l.channelFailed(ChannelLocalStore)
		return false
	}
	if l.metrics != nil {
		l.metrics.StoredTotal.Inc()
	}
	l.logger.Debug("error record saved to local store", "session_id", record.Context.SessionID)
	return true
}

func (l *ErrorLogger) sendRemote(ctx context.Context, endpoint string, record domain.ErrorRecord) {
	if endpoint == "" || l.remote == nil {
		return
	}
	err := l.remote.Send(ctx, endpoint, record)
	if err == nil {
		return
	}

	l.logger.Error("failed to send error record to API", "error", err, "endpoint", endpoint)
	l.channelFailed(ChannelAPI)
	if l.saveLocal(ctx, record.WithFallback(err)) && l.metrics != nil {
		l.metrics.FallbacksTotal.Inc()
	}
}

func (l *ErrorLogger) capture(ctx context.Context, record domain.ErrorRecord) {
	if l.events == nil {
		return
	}
	if err := l.events.Capture(ctx, record); err != nil {
		l.logger.Warn("failed to capture error record in sentry", "error", err)
		l.channelFailed(ChannelSentry)
	}
}

func (l *ErrorLogger) notify(o Observer, record domain.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("error record observer panicked", "panic", r)
			l.channelFailed("observer")
		}
	}()
	o(record)
}

func (l *ErrorLogger) channelFailed(ch Channel) {
	if l.metrics != nil {
		l.metrics.ChannelFailures.WithLabelValues(string(ch)).Inc()
	}
}

// StoredLogs returns the local store contents, oldest first. Read failures
// and a missing store yield an empty slice.
func (l *ErrorLogger) StoredLogs(ctx context.Context) []domain.ErrorRecord {
	if l.store == nil {
		return []domain.ErrorRecord{}
	}
	records, err := l.store.All(ctx)
	if err != nil {
		l.logger.Warn("failed to read local error store", "error", err)
		return []domain.ErrorRecord{}
	}
	if records == nil {
		records = []domain.ErrorRecord{}
	}
	return records
}

// ClearStoredLogs empties the local store.
func (l *ErrorLogger) ClearStoredLogs(ctx context.Context) {
	if l.store == nil {
		return
	}
	if err := l.store.Clear(ctx); err != nil {
		l.logger.Warn("failed to clear local error store", "error", err)
	}
}

// ExportLogs snapshots the local store as indented JSON named after the
// current UTC date.
func (l *ErrorLogger) ExportLogs(ctx context.Context) (Export, error) {
	data, err := json.MarshalIndent(l.StoredLogs(ctx), "", "  ")
	if err != nil {
		return Export{}, fmt.Errorf("failed to marshal stored error records: %w", err)
	}
	return Export{
		Filename: fmt.Sprintf("error-logs-%s.json", l.now().UTC().Format("2006-01-02")),
		Data:     data,
	}, nil
}

// Close waits for in-flight deliveries and flushes the event channel. Later
// Log calls deliver synchronously.
func (l *ErrorLogger) Close(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for error deliveries: %w", ctx.Err())
	}

	if l.events != nil && !l.events.Flush(l.cfg.SentryFlushTimeout) {
		l.logger.Warn("sentry flush timed out", "timeout", l.cfg.SentryFlushTimeout)
	}
	return nil
}
