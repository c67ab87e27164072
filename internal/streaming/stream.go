// Package streaming moves documents and match results across process
// boundaries: NATS JetStream carries documents in to be percolated and
// match results back out, and a WebSocket hub fans match results out to
// live-watching clients.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/percolate/percolator/internal/percolate"
)

// IngestDocument is the wire form of a document submitted for percolation.
// Fields mirrors percolate.Document's shape directly so no field-by-field
// translation is needed at the boundary.
type IngestDocument struct {
	ID     string              `json:"id"`
	Fields map[string][]string `json:"fields"`
}

// Document converts the wire form into the engine's Document type.
func (d IngestDocument) Document() percolate.Document {
	doc := make(percolate.Document, len(d.Fields))
	for field, values := range d.Fields {
		doc[field] = append([]string(nil), values...)
	}
	return doc
}

// MatchResult is published once a document has been percolated.
type MatchResult struct {
	DocumentID string        `json:"document_id"`
	Qids       []percolate.Qid `json:"qids"`
}

// QueryAdd is a request to register a new CNF query, submitted out of band
// from the HTTP add-query endpoint. It carries the same raw query text the
// HTTP handler parses.
type QueryAdd struct {
	Text string `json:"text"`
}

// NATSClient wraps a NATS connection with JetStream support for document
// ingestion and match-result publication.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewNATSClient connects to a NATS server and enables JetStream.
func NewNATSClient(url string) (*NATSClient, error) {
	logger := slog.Default().With("component", "nats")

	opts := []nats.Option{
		nats.Name("percolator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	return &NATSClient{conn: nc, js: js, logger: logger}, nil
}

// Close drains the connection (flushes pending messages) and disconnects.
func (c *NATSClient) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

// subjectDocumentIngest, subjectMatchResult and subjectQueryAdd name the
// three subjects this package ever publishes or subscribes to. Percolation is a single-tenant,
// single-pipeline concern, so unlike a multi-tenant job system there is no
// per-tenant subject segment to carry.
const (
	subjectDocumentIngest = "documents.ingest"
	subjectMatchResult    = "results.match"
	subjectQueryAdd       = "percolator.queries.add"
)

// EnsureStreams creates the required JetStream streams if they do not
// already exist.
//
//	DOCS    -- documents awaiting percolation, consumed exactly once each
//	RESULTS -- match results, fanned out to every interested subscriber
//	QUERIES -- out-of-band query registration requests, consumed once each
func (c *NATSClient) EnsureStreams(ctx context.Context) error {
	docsCfg := jetstream.StreamConfig{
		Name:        "DOCS",
		Description: "Documents submitted for percolation",
		Subjects:    []string{subjectDocumentIngest},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      1 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    1 * 1024 * 1024 * 1024, // 1 GB
	}

	resultsCfg := jetstream.StreamConfig{
		Name:        "RESULTS",
		Description: "Match results produced by percolation",
		Subjects:    []string{subjectMatchResult},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      1 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    512 * 1024 * 1024, // 512 MB
	}

	queriesCfg := jetstream.StreamConfig{
		Name:        "QUERIES",
		Description: "Out-of-band query registration requests",
		Subjects:    []string{subjectQueryAdd},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    256 * 1024 * 1024, // 256 MB
	}

	for _, cfg := range []jetstream.StreamConfig{docsCfg, resultsCfg, queriesCfg} {
		if _, err := c.js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
		c.logger.Info("JetStream stream ready", "stream", cfg.Name)
	}

	return nil
}

func (c *NATSClient) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal for %s: %w", subject, err)
	}

	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	c.logger.Debug("published message", "subject", subject, "bytes", len(data))
	return nil
}

// PublishDocument enqueues a document for percolation.
func (c *NATSClient) PublishDocument(ctx context.Context, doc IngestDocument) error {
	return c.publish(ctx, subjectDocumentIngest, doc)
}

// PublishMatchResult publishes the set of query IDs a document matched.
func (c *NATSClient) PublishMatchResult(ctx context.Context, result MatchResult) error {
	return c.publish(ctx, subjectMatchResult, result)
}

// PublishQueryAdd enqueues a query for registration out of band from the
// HTTP add-query endpoint.
func (c *NATSClient) PublishQueryAdd(ctx context.Context, q QueryAdd) error {
	return c.publish(ctx, subjectQueryAdd, q)
}

// SubscribeQueryAdd creates a durable work-queue consumer so exactly one
// server processes each query-add request, the NATS counterpart to the
// HTTP add phase.
func (c *NATSClient) SubscribeQueryAdd(ctx context.Context, handler func(QueryAdd) error) error {
	const durableName = "query-add-worker"

	cons, err := c.js.CreateOrUpdateConsumer(ctx, "QUERIES", jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subjectQueryAdd,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durableName, err)
	}

	_, err = cons.Consume(func(msg jetstream.Msg) {
		var q QueryAdd
		if err := json.Unmarshal(msg.Data(), &q); err != nil {
			c.logger.Error("unmarshal query add", "error", err)
			_ = msg.TermWithReason("unmarshal error")
			return
		}
		if err := handler(q); err != nil {
			c.logger.Error("handle query add", "error", err)
			_ = msg.TermWithReason(err.Error())
			return
		}
		if err := msg.Ack(); err != nil {
			c.logger.Error("ack query add", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", durableName, err)
	}

	c.logger.Info("subscribed to query add requests", "durable", durableName)
	return nil
}

// SubscribeDocuments creates a durable work-queue consumer so exactly one
// worker processes each ingested document. The message is acknowledged
// automatically after handler returns without panicking; a handler error
// terminates the message to avoid redelivering something it can never
// succeed on.
func (c *NATSClient) SubscribeDocuments(ctx context.Context, handler func(IngestDocument) error) error {
	const durableName = "document-ingest-worker"

	cons, err := c.js.CreateOrUpdateConsumer(ctx, "DOCS", jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subjectDocumentIngest,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", durableName, err)
	}

	_, err = cons.Consume(func(msg jetstream.Msg) {
		var doc IngestDocument
		if err := json.Unmarshal(msg.Data(), &doc); err != nil {
			c.logger.Error("unmarshal ingest document", "error", err)
			_ = msg.TermWithReason("unmarshal error")
			return
		}
		if err := handler(doc); err != nil {
			c.logger.Error("handle ingest document", "error", err, "document_id", doc.ID)
			_ = msg.TermWithReason(err.Error())
			return
		}
		if err := msg.Ack(); err != nil {
			c.logger.Error("ack ingest document", "error", err, "document_id", doc.ID)
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", durableName, err)
	}

	c.logger.Info("subscribed to document ingest", "durable", durableName)
	return nil
}

// SubscribeMatchResults subscribes to match results as they are published.
// This uses an ephemeral consumer: every live subscriber (e.g. the
// WebSocket hub) wants its own copy of every result, not a shared queue.
func (c *NATSClient) SubscribeMatchResults(ctx context.Context, handler func(MatchResult)) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, "RESULTS", jetstream.ConsumerConfig{
		FilterSubject:     subjectMatchResult,
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: 5 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create ephemeral consumer for %s: %w", subjectMatchResult, err)
	}

	_, err = cons.Consume(func(msg jetstream.Msg) {
		var result MatchResult
		if err := json.Unmarshal(msg.Data(), &result); err != nil {
			c.logger.Error("unmarshal match result", "error", err)
			return
		}
		handler(result)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", subjectMatchResult, err)
	}

	c.logger.Info("subscribed to match results")
	return nil
}

// Ping verifies the NATS connection is alive and JetStream is available.
func (c *NATSClient) Ping() error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats: not connected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.js.AccountInfo(ctx); err != nil {
		return fmt.Errorf("nats jetstream ping: %w", err)
	}
	return nil
}
