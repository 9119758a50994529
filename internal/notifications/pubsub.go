package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubNotifier publishes notifications to a Pub/Sub topic. Publishing is
// fire-and-forget: results are awaited in the background and failures only logged.
type PubSubNotifier struct {
	pub  publisher
	logg *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPubSubNotifier wraps a GCP publisher handle.
func NewPubSubNotifier(p *gcppubsub.Publisher, logg *logger.Logger) (*PubSubNotifier, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPubSubNotifier(&gcpPublisher{Publisher: p}, logg), nil
}

func newPubSubNotifier(pub publisher, logg *logger.Logger) *PubSubNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubNotifier{pub: pub, logg: logg}
}

func (p *PubSubNotifier) Notify(ctx context.Context, n cart.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logg.Error(ctx, "encoding cart notification", err)
		return
	}
	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"session_id": n.SessionID,
			"operation":  n.Operation,
			"code":       n.Code,
			"product_id": strconv.Itoa(n.ProductID),
		},
	}

	if !p.track() {
		p.logg.Warn(ctx, "pubsub notifier flushed, dropping notification")
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultPublishTimeout)
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		cancel()
		p.wg.Done()
		p.logg.Warn(ctx, "pubsub publisher returned no result")
		return
	}

	go func() {
		defer p.wg.Done()
		defer cancel()
		if _, err := result.Get(publishCtx); err != nil {
			p.logg.Error(ctx, "publishing cart notification", err)
		}
	}()
}

// track registers an in-flight publish unless Flush has started.
func (p *PubSubNotifier) track() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.wg.Add(1)
	return true
}

// Flush stops accepting notifications and waits for in-flight publishes or
// until ctx is done.
func (p *PubSubNotifier) Flush(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
