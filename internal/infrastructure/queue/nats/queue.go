package nats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lanewise/kbengine/internal/infrastructure/resilience"
)

// Queue carries two event streams: document-ingested (api to worker) and
// corpus-reindexed (worker to query nodes, which drop cached handles).
type Queue struct {
	conn           *nats.Conn
	ingestSubject  string
	reindexSubject string
	executor       *resilience.Executor
}

func New(url, ingestSubject, reindexSubject string) (*Queue, error) {
	return NewWithOptions(url, ingestSubject, reindexSubject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, ingestSubject, reindexSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("lanewise-kbengine"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		ingestSubject:  ingestSubject,
		reindexSubject: reindexSubject,
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.ingestSubject, documentID)
}

func (q *Queue) PublishCorpusReindexed(ctx context.Context, kbID string) error {
	return q.publish(ctx, q.reindexSubject, kbID)
}

func (q *Queue) publish(ctx context.Context, subject, payload string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(payload)); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish."+subject, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeDocumentIngested joins the worker queue group so exactly one
// worker processes each uploaded document. Blocks until ctx is canceled.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.ingestSubject, "workers", handler)
}

// SubscribeCorpusReindexed fans the reindex event out to every query node;
// no queue group, each subscriber invalidates its own handle cache.
func (q *Queue) SubscribeCorpusReindexed(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.reindexSubject, "", handler)
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, string) error) error {
	callback := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			log.Printf("handler error subject=%s id=%s: %v", subject, string(msg.Data), err)
		}
	}

	var sub *nats.Subscription
	var err error
	if group == "" {
		sub, err = q.conn.Subscribe(subject, callback)
	} else {
		sub, err = q.conn.QueueSubscribe(subject, group, callback)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
