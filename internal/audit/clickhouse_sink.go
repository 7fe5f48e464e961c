// Package audit ships ledger events to ClickHouse for later analysis.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gomate-auth/internal/otp"
)

// Inserter is the part of client.ClickHouseClient the sink writes through.
type Inserter interface {
	BatchInsert(ctx context.Context, query string, data [][]interface{}) error
}

// ClickHouseSink buffers events and inserts them in batches from a single
// background goroutine. Record never blocks: when the buffer is full the event
// is dropped and counted, as is anything recorded after Close.
type ClickHouseSink struct {
	inserter      Inserter
	query         string
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	events  chan otp.Event
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewClickHouseSink(inserter Inserter, table string, batchSize int, flushInterval time.Duration, logger *zap.Logger) *ClickHouseSink {
	if batchSize <= 0 {
		batchSize = 500
	}
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}

	s := &ClickHouseSink{
		inserter:      inserter,
		query:         fmt.Sprintf("INSERT INTO %s (event_id, event_type, recipient, attempts, occurred_at)", table),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		events:        make(chan otp.Event, batchSize*4),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *ClickHouseSink) Record(_ context.Context, e otp.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.dropped++
		return
	}
	select {
	case s.events <- e:
	default:
		s.dropped++
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *ClickHouseSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops accepting events, flushes what is buffered and waits for the
// writer goroutine to exit.
func (s *ClickHouseSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *ClickHouseSink) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([][]interface{}, 0, s.batchSize)
	for {
		select {
		case e, ok := <-s.events:
			if !ok {
				s.flush(batch)
				return
			}
			batch = append(batch, row(e))
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *ClickHouseSink) flush(batch [][]interface{}) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.inserter.BatchInsert(ctx, s.query, batch); err != nil {
		s.logger.Error("Failed to write audit events",
			zap.Int("count", len(batch)),
			zap.Error(err))
		return
	}
	s.logger.Debug("Audit events written", zap.Int("count", len(batch)))
}

func row(e otp.Event) []interface{} {
	return []interface{}{
		uuid.New(),
		string(e.Type),
		e.Recipient,
		uint8(min(e.Attempts, 255)),
		e.OccurredAt.UTC(),
	}
}
