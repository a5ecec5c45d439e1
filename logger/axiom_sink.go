package logger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

// AxiomSink ships log entries to an Axiom dataset, so update failures in
// the field show up somewhere a human looks. Ingestion is fully
// asynchronous: a full channel drops entries instead of stalling the
// update pipeline.
type AxiomSink struct {
	name       string
	dataset    string
	client     *axiom.Client
	channel    chan axiom.Event
	cancelFunc context.CancelFunc
	drops      uint64
}

// NewAxiomSink creates an Axiom sink for the given API token and dataset.
func NewAxiomSink(token, dataset string) (*AxiomSink, error) {
	if token == "" {
		return nil, fmt.Errorf("axiom sink requires a token")
	}
	if dataset == "" {
		return nil, fmt.Errorf("axiom sink requires a dataset")
	}

	client, err := axiom.NewClient(
		axiom.SetToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Axiom client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sink := &AxiomSink{
		name:       "axiom",
		dataset:    dataset,
		client:     client,
		channel:    make(chan axiom.Event, 1000),
		cancelFunc: cancel,
	}

	go sink.runIngestion(ctx)

	log.Printf("[logger:axiom] Axiom sink initialized: dataset=%s", dataset)

	return sink, nil
}

// Write queues an entry for ingestion without blocking.
func (s *AxiomSink) Write(entry *Entry) error {
	if s.channel == nil {
		return fmt.Errorf("axiom sink %s is closed", s.name)
	}

	event := axiom.Event{
		"timestamp": entry.Time,
		"level":     string(entry.Level),
		"message":   entry.Message,
	}

	select {
	case s.channel <- event:
		return nil
	default:
		drops := atomic.AddUint64(&s.drops, 1)
		if drops%100 == 1 {
			log.Printf("[logger:axiom] Sink %s channel is full, total drops: %d", s.name, drops)
		}
		return fmt.Errorf("channel full, event dropped")
	}
}

// Close stops ingestion and releases the client.
func (s *AxiomSink) Close() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	if s.channel != nil {
		close(s.channel)
		s.channel = nil
	}

	s.client = nil

	return nil
}

// Name returns the name of this sink.
func (s *AxiomSink) Name() string {
	return s.name
}

// runIngestion pushes queued events to Axiom, reconnecting with a growing
// delay on failures. An updater run is short; whatever cannot be shipped
// before the process exits is lost, which is acceptable for telemetry.
func (s *AxiomSink) runIngestion(ctx context.Context) {
	const (
		initialRetryDelay = 1 * time.Second
		maxRetryDelay     = 30 * time.Second
	)

	retryDelay := initialRetryDelay

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.client == nil || s.channel == nil {
			return
		}

		// Blocks until the context is cancelled or an error occurs.
		_, err := s.client.IngestChannel(ctx, s.dataset, s.channel, ingest.SetTimestampField("timestamp"))

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}

			log.Printf("[logger:axiom] Sink %s ingestion error: %v. Retrying in %v", s.name, err, retryDelay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
				retryDelay *= 2
				if retryDelay > maxRetryDelay {
					retryDelay = maxRetryDelay
				}
			}
		} else {
			retryDelay = initialRetryDelay
		}
	}
}
