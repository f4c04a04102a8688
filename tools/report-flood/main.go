package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/V4T54L/loanapp/internal/adapter/channel"
	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/V4T54L/loanapp/internal/pkg/logger"
	"github.com/V4T54L/loanapp/internal/usecase"
)

// report-flood posts synthetic error records to a collector at a fixed rate.
func main() {
	targetURL := flag.String("url", "http://localhost:8080/errors", "Collector endpoint")
	apiKey := flag.String("api-key", "", "API key sent as X-API-Key")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the run")
	rps := flag.Int("rps", 200, "Requests per second limit")
	batch := flag.Int("batch", 0, "Records per zstd NDJSON request; 0 posts single JSON records")
	flag.Parse()

	log := logger.New("info", "text")
	log.Info("starting report flood", "url", *targetURL, "concurrency", *concurrency, "duration", *duration, "rps", *rps, "batch", *batch)

	formatter, err := usecase.NewErrorLogger(usecase.LoggerConfig{}, nil, nil, log)
	if err != nil {
		log.Error("failed to create record formatter", "error", err)
		os.Exit(1)
	}
	reporter := channel.NewHTTPReporter(5*time.Second, *apiKey)
	var batcher *batchSender
	if *batch > 0 {
		batcher, err = newBatchSender(&http.Client{Timeout: 5 * time.Second}, *targetURL, *apiKey)
		if err != nil {
			log.Error("failed to create zstd encoder", "error", err)
			os.Exit(1)
		}
	}

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	statusCounts := sync.Map{}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 100)

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				n := max(*batch, 1)
				records := make([]domain.ErrorRecord, n)
				for j := range records {
					records[j] = formatter.FormatError(ctx, fmt.Errorf("load test failure %s", uuid.NewString()), domain.Fields{
						Component: "report-flood",
						Action:    fmt.Sprintf("worker_%d", workerID),
						SessionID: "flood-" + uuid.NewString(),
					})
				}

				var err error
				if batcher != nil {
					err = batcher.Send(ctx, records)
				} else {
					err = reporter.Send(ctx, *targetURL, records[0])
				}
				if err == nil {
					successCount.Add(int64(n))
					continue
				}
				if ctx.Err() != nil {
					return
				}
				errorCount.Add(int64(n))
				var statusErr *channel.StatusError
				if errors.As(err, &statusErr) {
					v, _ := statusCounts.LoadOrStore(statusErr.StatusCode, new(atomic.Int64))
					v.(*atomic.Int64).Add(1)
				}
			}
		}(i)
	}

	wg.Wait()

	total := successCount.Load() + errorCount.Load()
	log.Info("report flood finished",
		"total", total,
		"accepted", successCount.Load(),
		"errors", errorCount.Load(),
		"actual_rps", fmt.Sprintf("%.2f", float64(total)/duration.Seconds()),
	)
	statusCounts.Range(func(k, v any) bool {
		log.Info("rejected reports", "status", k, "count", v.(*atomic.Int64).Load())
		return true
	})
}
