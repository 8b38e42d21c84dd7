package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"newsrag/internal/model"
)

const (
	stateIdle int32 = iota
	stateRunning
)

// ArticleProcessor is the slice of the processing pipeline the ingestion
// loop needs.
type ArticleProcessor interface {
	Process(ctx context.Context, url string) (model.Article, error)
}

// Controller feeds URLs from the message stream into the article
// pipeline. When the stream cannot be established it falls back to a
// bulk CSV source. Start and Stop are idempotent; the Idle/Running
// transition is a compare-and-swap so concurrent starts cannot race.
type Controller struct {
	stream       Stream
	processor    ArticleProcessor
	fallbackPath string
	logger       *zap.Logger

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(stream Stream, processor ArticleProcessor, fallbackPath string, logger *zap.Logger) *Controller {
	return &Controller{
		stream:       stream,
		processor:    processor,
		fallbackPath: fallbackPath,
		logger:       logger,
	}
}

// Start connects the stream consumer, or runs the bulk fallback when the
// stream cannot be established. Starting while already running is a
// successful no-op. Only an unreadable fallback source makes Start fail;
// the superseded stream error is logged, not returned.
func (c *Controller) Start(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateIdle, stateRunning) {
		c.logger.Info("Ingestion already running")
		return nil
	}

	if err := c.stream.Subscribe(ctx); err != nil {
		c.logger.Warn("Stream connection failed, falling back to bulk source", zap.Error(err))
		if fbErr := c.ingestFallback(ctx); fbErr != nil {
			c.state.Store(stateIdle)
			return fbErr
		}
		c.logger.Info("Bulk fallback ingestion completed")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consume(runCtx)

	c.logger.Info("Stream ingestion started")
	return nil
}

// Stop disconnects the consumer and returns to Idle. Stopping while Idle
// is a no-op.
func (c *Controller) Stop() {
	if !c.state.CompareAndSwap(stateRunning, stateIdle) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.stream.Close(); err != nil {
		c.logger.Error("Error closing stream", zap.Error(err))
	}
	c.wg.Wait()
	c.logger.Info("Ingestion stopped")
}

func (c *Controller) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		url, err := c.stream.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("Stream fetch error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		c.logger.Info("Received URL from stream", zap.String("url", url))
		if _, err := c.processor.Process(ctx, url); err != nil {
			c.logger.Error("Failed to process streamed URL", zap.String("url", url), zap.Error(err))
		}
	}
}

// ingestFallback reads the bulk CSV source and processes every record
// that carries a url field. Per-record processing failures are logged
// and skipped.
func (c *Controller) ingestFallback(ctx context.Context) error {
	file, err := os.Open(c.fallbackPath)
	if err != nil {
		return fmt.Errorf("open fallback source %s: %w", c.fallbackPath, err)
	}
	defer file.Close()

	c.logger.Info("Starting bulk ingestion", zap.String("path", c.fallbackPath))

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read fallback header from %s: %w", c.fallbackPath, err)
	}

	urlColumn := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "url") {
			urlColumn = i
			break
		}
	}
	if urlColumn < 0 {
		return fmt.Errorf("fallback source %s has no url column", c.fallbackPath)
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read fallback record from %s: %w", c.fallbackPath, err)
		}
		if urlColumn >= len(record) {
			continue
		}
		url := strings.TrimSpace(record[urlColumn])
		if url == "" {
			continue
		}

		c.logger.Info("Processing URL from bulk source", zap.String("url", url))
		if _, err := c.processor.Process(ctx, url); err != nil {
			c.logger.Error("Failed to process bulk URL", zap.String("url", url), zap.Error(err))
		}
	}
}
