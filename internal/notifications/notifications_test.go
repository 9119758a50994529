package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/rs/zerolog"
)

func sample(session string, productID int) cart.Notification {
	return cart.Notification{
		SessionID:  session,
		Operation:  cart.OperationAddProduct,
		ProductID:  productID,
		Code:       "OUT_OF_STOCK",
		Message:    cart.MessageOutOfStock,
		OccurredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestFeedDrainIsPerSessionAndClears(t *testing.T) {
	t.Parallel()

	feed := NewFeed(0)
	ctx := context.Background()
	feed.Notify(ctx, sample("a", 1))
	feed.Notify(ctx, sample("b", 2))
	feed.Notify(ctx, sample("a", 3))

	got := feed.Drain("a")
	if len(got) != 2 || got[0].ProductID != 1 || got[1].ProductID != 3 {
		t.Fatalf("unexpected drain for a: %+v", got)
	}
	if again := feed.Drain("a"); len(again) != 0 || again == nil {
		t.Fatalf("expected empty non-nil slice after drain, got %#v", again)
	}
	if got := feed.Drain("b"); len(got) != 1 || got[0].ProductID != 2 {
		t.Fatalf("unexpected drain for b: %+v", got)
	}
}

func TestFeedDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	feed := NewFeed(3)
	for i := 1; i <= 5; i++ {
		feed.Notify(context.Background(), sample("a", i))
	}
	got := feed.Drain("a")
	if len(got) != 3 || got[0].ProductID != 3 || got[2].ProductID != 5 {
		t.Fatalf("expected the 3 newest notifications, got %+v", got)
	}
}

func TestFeedEvictsIdleSessions(t *testing.T) {
	t.Parallel()

	feed := NewFeed(0)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	feed.now = func() time.Time { return now }
	ctx := context.Background()

	feed.Notify(ctx, sample("stale", 1))
	now = base.Add(time.Hour)
	feed.Notify(ctx, sample("live", 2))

	if n := feed.EvictIdle(base.Add(30 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if feed.Len() != 1 {
		t.Fatalf("expected 1 pending session, got %d", feed.Len())
	}
	if got := feed.Drain("stale"); len(got) != 0 {
		t.Fatalf("stale queue survived eviction: %+v", got)
	}
	if got := feed.Drain("live"); len(got) != 1 {
		t.Fatalf("live queue lost: %+v", got)
	}
}

func TestLogNotifierWritesWarnLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	NewLogNotifier(logg).Notify(context.Background(), sample("sess", 42))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warn" || entry["session_id"] != "sess" || entry["product_id"] != float64(42) {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if entry["user_message"] != cart.MessageOutOfStock {
		t.Fatalf("expected user message in log, got %v", entry["user_message"])
	}
}

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := NewFeed(5), NewFeed(5)
	var calls int
	counter := cart.NotifierFunc(func(context.Context, cart.Notification) { calls++ })

	Multi{a, nil, b, counter}.Notify(context.Background(), sample("s", 1))

	if len(a.Drain("s")) != 1 || len(b.Drain("s")) != 1 || calls != 1 {
		t.Fatal("expected every sink to receive the notification once")
	}
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}

func TestPubSubNotifierPublishesJSON(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	notifier := newPubSubNotifier(pub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	notifier.Notify(ctx, sample("sess", 7))
	cancel()

	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["session_id"] != "sess" || msg.Attributes["product_id"] != "7" || msg.Attributes["code"] != "OUT_OF_STOCK" {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}
	var decoded cart.Notification
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	want := sample("sess", 7)
	if !decoded.OccurredAt.Equal(want.OccurredAt) {
		t.Fatalf("unexpected timestamp %v", decoded.OccurredAt)
	}
	decoded.OccurredAt = want.OccurredAt
	if decoded != want {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestPubSubNotifierOnlyLogsFailures(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	notifier := newPubSubNotifier(&fakePublisher{err: errors.New("topic gone")}, logg)

	notifier.Notify(context.Background(), sample("sess", 1))
	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !strings.Contains(buf.String(), "topic gone") {
		t.Fatalf("expected publish failure to be logged, got %s", buf.String())
	}
}

func TestPubSubNotifierDropsAfterFlush(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	notifier := newPubSubNotifier(pub, nil)
	notifier.Notify(context.Background(), sample("sess", 1))
	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	notifier.Notify(context.Background(), sample("sess", 2))
	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.messages) != 1 {
		t.Fatalf("expected only the pre-flush message, got %d", len(pub.messages))
	}
}

func TestPubSubNotifierFlushRacesNotify(t *testing.T) {
	t.Parallel()

	notifier := newPubSubNotifier(&fakePublisher{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				notifier.Notify(context.Background(), sample("sess", i*100+j))
			}
		}(i)
	}
	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	wg.Wait()
	if err := notifier.Flush(context.Background()); err != nil {
		t.Fatalf("final flush: %v", err)
	}
}

func TestNewPubSubNotifierRequiresPublisher(t *testing.T) {
	t.Parallel()

	if _, err := NewPubSubNotifier(nil, nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
