package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

const testSession = "session-1"

func newTestManager(t *testing.T, inv *stubInventory, store *stubStore, notifier *recordingNotifier) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), ManagerParams{
		SessionID: testSession,
		Inventory: inv,
		Store:     store,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func seedSnapshot(t *testing.T, store *stubStore, items []LineItem) {
	t.Helper()
	payload, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	store.data[SnapshotKey(testSession)] = payload
}

func amounts(items []LineItem) map[int]int {
	out := make(map[int]int, len(items))
	for _, item := range items {
		out[item.ID] = item.Amount
	}
	return out
}

func assertInvariants(t *testing.T, items []LineItem) {
	t.Helper()
	seen := map[int]bool{}
	for _, item := range items {
		if seen[item.ID] {
			t.Fatalf("product %d appears twice in %+v", item.ID, items)
		}
		seen[item.ID] = true
		if item.Amount < 1 {
			t.Fatalf("product %d has amount %d", item.ID, item.Amount)
		}
	}
}

func assertPersisted(t *testing.T, store *stubStore, items []LineItem) {
	t.Helper()
	persisted, err := decodeSnapshot(store.snapshot(SnapshotKey(testSession)))
	if err != nil {
		t.Fatalf("decode persisted snapshot: %v", err)
	}
	if diff := cmp.Diff(items, persisted, decimalEqual); diff != "" {
		t.Fatalf("persisted snapshot diverged (-memory +store):\n%s", diff)
	}
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	t.Parallel()

	inv, store, notifier := newStubInventory(), newStubStore(), &recordingNotifier{}
	cases := []ManagerParams{
		{Store: store, Notifier: notifier},
		{Inventory: inv, Notifier: notifier},
		{Inventory: inv, Store: store},
	}
	for _, params := range cases {
		if _, err := NewManager(context.Background(), params); err == nil {
			t.Fatalf("expected error for params %+v", params)
		}
	}
}

func TestNewManagerHydration(t *testing.T) {
	t.Parallel()

	valid := []LineItem{
		{Product: Product{ID: 3, Title: "Tenis Nike", Price: decimal.RequireFromString("179.9")}, Amount: 2},
		{Product: Product{ID: 1, Title: "Tenis Adidas", Price: decimal.RequireFromString("139.9")}, Amount: 1},
	}
	validPayload, _ := json.Marshal(valid)

	cases := []struct {
		name    string
		payload []byte
		want    []LineItem
	}{
		{name: "no snapshot", want: []LineItem{}},
		{name: "valid snapshot", payload: validPayload, want: valid},
		{name: "empty array", payload: []byte(`[]`), want: []LineItem{}},
		{name: "json null", payload: []byte(`null`), want: []LineItem{}},
		{name: "malformed json", payload: []byte(`{"id":`), want: []LineItem{}},
		{name: "wrong shape", payload: []byte(`{"id":1}`), want: []LineItem{}},
		{name: "duplicate ids", payload: []byte(`[{"id":1,"amount":1},{"id":1,"amount":2}]`), want: []LineItem{}},
		{name: "zero amount", payload: []byte(`[{"id":1,"amount":0}]`), want: []LineItem{}},
		{name: "negative amount", payload: []byte(`[{"id":1,"amount":-2}]`), want: []LineItem{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := newStubStore()
			if tc.payload != nil {
				store.data[SnapshotKey(testSession)] = tc.payload
			}
			m := newTestManager(t, newStubInventory(), store, &recordingNotifier{})
			if diff := cmp.Diff(tc.want, m.Items(), decimalEqual); diff != "" {
				t.Fatalf("unexpected hydrated cart (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewManagerFailsWhenStoreUnavailable(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.data[SnapshotKey(testSession)] = []byte(`[{"id":1,"amount":3}]`)
	store.loadErr = errTransport

	_, err := NewManager(context.Background(), ManagerParams{
		SessionID: testSession,
		Inventory: newStubInventory(),
		Store:     store,
		Notifier:  &recordingNotifier{},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) || !errors.Is(err, errTransport) {
		t.Fatalf("expected dependency error wrapping the load failure, got %v", err)
	}
	if store.saveCount() != 0 {
		t.Fatal("a failed hydration must not write")
	}
}

func TestNewManagerHydratesDespiteCanceledRequest(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	store.data[SnapshotKey(testSession)] = []byte(`[{"id":1,"amount":3}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := NewManager(ctx, ManagerParams{
		SessionID: testSession,
		Inventory: newStubInventory(),
		Store:     store,
		Notifier:  &recordingNotifier{},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if store.lastLoadCtxErr() != nil {
		t.Fatalf("load saw a canceled context: %v", store.lastLoadCtxErr())
	}
	if items := m.Items(); len(items) != 1 || items[0].Amount != 3 {
		t.Fatalf("expected persisted cart, got %+v", items)
	}
}

func TestAddProductUntilOutOfStock(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(42, "runner", "99.90", 3)
	store := newStubStore()
	notifier := &recordingNotifier{}
	m := newTestManager(t, inv, store, notifier)
	ctx := context.Background()

	if err := m.AddProduct(ctx, 42); err != nil {
		t.Fatalf("first add: %v", err)
	}
	items := m.Items()
	if len(items) != 1 || items[0].ID != 42 || items[0].Amount != 1 || items[0].Title != "runner" {
		t.Fatalf("unexpected cart after first add: %+v", items)
	}

	for i := 0; i < 2; i++ {
		if err := m.AddProduct(ctx, 42); err != nil {
			t.Fatalf("add %d: %v", i+2, err)
		}
	}
	if got := amounts(m.Items())[42]; got != 3 {
		t.Fatalf("expected amount 3, got %d", got)
	}
	before := append([]byte(nil), store.snapshot(SnapshotKey(testSession))...)

	err := m.AddProduct(ctx, 42)
	if !IsOutOfStock(err) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(StockDetails)
	if !ok || details.Requested != 4 || details.Available != 3 {
		t.Fatalf("unexpected out of stock details %+v", pkgerrors.As(err).Details())
	}
	if got := amounts(m.Items())[42]; got != 3 {
		t.Fatalf("amount changed after rejected add: %d", got)
	}
	if !bytes.Equal(before, store.snapshot(SnapshotKey(testSession))) {
		t.Fatal("snapshot rewritten after rejected add")
	}
	if store.saveCount() != 3 {
		t.Fatalf("expected 3 saves, got %d", store.saveCount())
	}

	sent := notifier.all()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	if sent[0].Message != MessageOutOfStock || sent[0].Code != string(pkgerrors.CodeOutOfStock) ||
		sent[0].ProductID != 42 || sent[0].Operation != OperationAddProduct || sent[0].SessionID != testSession {
		t.Fatalf("unexpected notification %+v", sent[0])
	}
	if _, productCalls := inv.calls(); productCalls != 1 {
		t.Fatalf("product info should be fetched once, got %d", productCalls)
	}
	assertPersisted(t, store, m.Items())
}

func TestAddProductWithZeroStock(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(5, "sold-out", "10", 0)
	store := newStubStore()
	m := newTestManager(t, inv, store, &recordingNotifier{})

	if err := m.AddProduct(context.Background(), 5); !IsOutOfStock(err) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if len(m.Items()) != 0 || store.saveCount() != 0 {
		t.Fatalf("cart should stay empty and unsaved")
	}
	if _, productCalls := inv.calls(); productCalls != 0 {
		t.Fatalf("product info fetched for rejected add")
	}
}

func TestAddProductPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().
		withProduct(1, "a", "10", 5).
		withProduct(2, "b", "20", 5).
		withProduct(3, "c", "30", 5)
	m := newTestManager(t, inv, newStubStore(), &recordingNotifier{})
	ctx := context.Background()

	for _, id := range []int{2, 1, 2, 3, 1} {
		if err := m.AddProduct(ctx, id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}

	items := m.Items()
	gotOrder := []int{}
	for _, item := range items {
		gotOrder = append(gotOrder, item.ID)
	}
	if diff := cmp.Diff([]int{2, 1, 3}, gotOrder); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[int]int{1: 2, 2: 2, 3: 1}, amounts(items)); diff != "" {
		t.Fatalf("unexpected amounts (-want +got):\n%s", diff)
	}
}

func TestAddProductForcesRequestedID(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(8, "boot", "50", 2)
	p := inv.products[8]
	p.ID = 0
	inv.products[8] = p
	m := newTestManager(t, inv, newStubStore(), &recordingNotifier{})

	if err := m.AddProduct(context.Background(), 8); err != nil {
		t.Fatalf("add: %v", err)
	}
	if items := m.Items(); items[0].ID != 8 {
		t.Fatalf("expected line id 8, got %d", items[0].ID)
	}
}

func TestAddProductInventoryFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		setup    func(inv *stubInventory)
		wantCode pkgerrors.Code
	}{
		{
			name:     "stock transport error",
			setup:    func(inv *stubInventory) { inv.stockErr = errTransport },
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "product transport error",
			setup:    func(inv *stubInventory) { inv.productErr = errTransport },
			wantCode: pkgerrors.CodeDependency,
		},
		{
			name:     "unknown product",
			setup:    func(inv *stubInventory) { delete(inv.products, 1); delete(inv.stock, 1) },
			wantCode: pkgerrors.CodeNotFound,
		},
		{
			name:     "stock known but product missing",
			setup:    func(inv *stubInventory) { delete(inv.products, 1) },
			wantCode: pkgerrors.CodeNotFound,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			inv := newStubInventory().withProduct(1, "a", "10", 5)
			tc.setup(inv)
			store := newStubStore()
			notifier := &recordingNotifier{}
			m := newTestManager(t, inv, store, notifier)

			err := m.AddProduct(context.Background(), 1)
			if !pkgerrors.HasCode(err, tc.wantCode) {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
			if len(m.Items()) != 0 || store.saveCount() != 0 {
				t.Fatal("failed add must not change state")
			}
			sent := notifier.all()
			if len(sent) != 1 || sent[0].Message != MessageAddFailed {
				t.Fatalf("expected add failure notification, got %+v", sent)
			}
		})
	}
}

func TestRemoveProduct(t *testing.T) {
	t.Parallel()

	inv := newStubInventory()
	store := newStubStore()
	notifier := &recordingNotifier{}
	seedSnapshot(t, store, []LineItem{{Product: Product{ID: 9, Title: "slip-on"}, Amount: 1}})
	m := newTestManager(t, inv, store, notifier)
	ctx := context.Background()

	if err := m.RemoveProduct(ctx, 9); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(m.Items()) != 0 {
		t.Fatalf("expected empty cart, got %+v", m.Items())
	}
	if got := string(store.snapshot(SnapshotKey(testSession))); got != "[]" {
		t.Fatalf("expected empty persisted cart, got %s", got)
	}

	err := m.RemoveProduct(ctx, 9)
	if !IsProductNotInCart(err) {
		t.Fatalf("expected product not in cart, got %v", err)
	}
	sent := notifier.all()
	if len(sent) != 1 || sent[0].Message != MessageRemoveFailed || sent[0].Code != string(pkgerrors.CodeProductNotInCart) {
		t.Fatalf("unexpected notifications %+v", sent)
	}
	if stockCalls, productCalls := inv.calls(); stockCalls+productCalls != 0 {
		t.Fatal("remove must not query the inventory")
	}
}

func TestRemoveProductDropsWholeLine(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	seedSnapshot(t, store, []LineItem{
		{Product: Product{ID: 1}, Amount: 4},
		{Product: Product{ID: 2}, Amount: 7},
		{Product: Product{ID: 3}, Amount: 1},
	})
	m := newTestManager(t, newStubInventory(), store, &recordingNotifier{})

	if err := m.RemoveProduct(context.Background(), 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items := m.Items()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 3 {
		t.Fatalf("unexpected cart %+v", items)
	}
	if _, ok := amounts(items)[2]; ok {
		t.Fatal("removed product still present")
	}
	assertPersisted(t, store, items)
}

func TestUpdateProductAmount(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(7, "court", "120", 5)
	store := newStubStore()
	notifier := &recordingNotifier{}
	seedSnapshot(t, store, []LineItem{{Product: Product{ID: 7, Title: "court", Price: decimal.RequireFromString("120")}, Amount: 2}})
	m := newTestManager(t, inv, store, notifier)
	ctx := context.Background()

	if err := m.UpdateProductAmount(ctx, 7, 5); err != nil {
		t.Fatalf("update to 5: %v", err)
	}
	if got := amounts(m.Items())[7]; got != 5 {
		t.Fatalf("expected amount 5, got %d", got)
	}

	err := m.UpdateProductAmount(ctx, 7, 6)
	if !IsOutOfStock(err) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if got := amounts(m.Items())[7]; got != 5 {
		t.Fatalf("amount changed after rejected update: %d", got)
	}

	sent := notifier.all()
	if len(sent) != 1 || sent[0].Message != MessageOutOfStock || sent[0].Operation != OperationUpdateProductAmount {
		t.Fatalf("unexpected notifications %+v", sent)
	}
	if m.Items()[0].Title != "court" {
		t.Fatal("update must leave display fields untouched")
	}
	assertPersisted(t, store, m.Items())
}

func TestUpdateProductAmountNoopForNonPositive(t *testing.T) {
	t.Parallel()

	for _, amount := range []int{0, -1} {
		inv := newStubInventory().withProduct(7, "court", "120", 5)
		store := newStubStore()
		notifier := &recordingNotifier{}
		seedSnapshot(t, store, []LineItem{{Product: Product{ID: 7}, Amount: 2}})
		before := append([]byte(nil), store.snapshot(SnapshotKey(testSession))...)
		m := newTestManager(t, inv, store, notifier)
		itemsBefore := m.Items()

		if err := m.UpdateProductAmount(context.Background(), 7, amount); err != nil {
			t.Fatalf("amount %d: expected no-op, got %v", amount, err)
		}
		if diff := cmp.Diff(itemsBefore, m.Items(), decimalEqual); diff != "" {
			t.Fatalf("amount %d changed cart:\n%s", amount, diff)
		}
		if !bytes.Equal(before, store.snapshot(SnapshotKey(testSession))) || store.saveCount() != 0 {
			t.Fatalf("amount %d touched the store", amount)
		}
		if len(notifier.all()) != 0 {
			t.Fatalf("amount %d produced a notification", amount)
		}
		if stockCalls, _ := inv.calls(); stockCalls != 0 {
			t.Fatalf("amount %d queried stock", amount)
		}
	}
}

func TestUpdateProductAmountMissingProduct(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(7, "court", "120", 5)
	store := newStubStore()
	notifier := &recordingNotifier{}
	m := newTestManager(t, inv, store, notifier)

	err := m.UpdateProductAmount(context.Background(), 7, 2)
	if !IsProductNotInCart(err) {
		t.Fatalf("expected product not in cart, got %v", err)
	}
	if len(m.Items()) != 0 || store.saveCount() != 0 {
		t.Fatal("update must never create a line")
	}
	if stockCalls, _ := inv.calls(); stockCalls != 0 {
		t.Fatal("missing line should be rejected before querying stock")
	}
	if sent := notifier.all(); len(sent) != 1 || sent[0].Message != MessageUpdateFailed {
		t.Fatalf("unexpected notifications %+v", sent)
	}
}

func TestUpdateProductAmountStockFailure(t *testing.T) {
	t.Parallel()

	inv := newStubInventory()
	inv.stockErr = errTransport
	store := newStubStore()
	notifier := &recordingNotifier{}
	seedSnapshot(t, store, []LineItem{{Product: Product{ID: 7}, Amount: 2}})
	m := newTestManager(t, inv, store, notifier)

	err := m.UpdateProductAmount(context.Background(), 7, 3)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) || !errors.Is(err, errTransport) {
		t.Fatalf("expected dependency error wrapping transport failure, got %v", err)
	}
	if amounts(m.Items())[7] != 2 {
		t.Fatal("state changed after failed update")
	}
	if sent := notifier.all(); len(sent) != 1 || sent[0].Message != MessageUpdateFailed {
		t.Fatalf("unexpected notifications %+v", sent)
	}
}

func TestCommitSaveFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(1, "a", "10", 5)
	store := newStubStore()
	notifier := &recordingNotifier{}
	m := newTestManager(t, inv, store, notifier)
	ctx := context.Background()

	if err := m.AddProduct(ctx, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	store.saveErr = errors.New("disk full")

	err := m.AddProduct(ctx, 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if amounts(m.Items())[1] != 1 {
		t.Fatalf("in-memory cart advanced despite failed save: %+v", m.Items())
	}
	if err := m.RemoveProduct(ctx, 1); err == nil {
		t.Fatal("expected remove to fail while the store is down")
	}
	if len(m.Items()) != 1 {
		t.Fatal("remove applied despite failed save")
	}
	if sent := notifier.all(); len(sent) != 2 || sent[0].Message != MessageAddFailed || sent[1].Message != MessageRemoveFailed {
		t.Fatalf("unexpected notifications %+v", sent)
	}

	store.saveErr = nil
	if err := m.AddProduct(ctx, 1); err != nil {
		t.Fatalf("failures must not poison later operations: %v", err)
	}
	if amounts(m.Items())[1] != 2 {
		t.Fatalf("expected recovery to amount 2, got %+v", m.Items())
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	store := newStubStore()
	seedSnapshot(t, store, []LineItem{{Product: Product{ID: 1, Title: "a"}, Amount: 1}})
	m := newTestManager(t, newStubInventory(), store, &recordingNotifier{})

	items := m.Items()
	items[0].Amount = 99
	items[0].Title = "mutated"
	_ = append(items, LineItem{Product: Product{ID: 2}, Amount: 1})

	again := m.Items()
	if len(again) != 1 || again[0].Amount != 1 || again[0].Title != "a" {
		t.Fatalf("manager state mutated through Items(): %+v", again)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().
		withProduct(1, "a", "139.90", 4).
		withProduct(2, "b", "179.90", 4)
	store := newStubStore()
	m := newTestManager(t, inv, store, &recordingNotifier{})
	ctx := context.Background()

	steps := []func() error{
		func() error { return m.AddProduct(ctx, 1) },
		func() error { return m.AddProduct(ctx, 2) },
		func() error { return m.UpdateProductAmount(ctx, 1, 3) },
		func() error { return m.AddProduct(ctx, 2) },
		func() error { return m.RemoveProduct(ctx, 1) },
		func() error { return m.AddProduct(ctx, 1) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		reloaded := newTestManager(t, inv, store, &recordingNotifier{})
		if diff := cmp.Diff(m.Items(), reloaded.Items(), decimalEqual); diff != "" {
			t.Fatalf("step %d: reloaded cart differs (-live +reloaded):\n%s", i, diff)
		}
	}
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(1, "a", "10", 5)
	store := newStubStore()
	notifier := &recordingNotifier{}
	m := newTestManager(t, inv, store, notifier)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		outOfStock int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.AddProduct(context.Background(), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case IsOutOfStock(err):
				outOfStock++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 5 || outOfStock != 7 {
		t.Fatalf("expected 5 successes and 7 rejections, got %d/%d", successes, outOfStock)
	}
	if got := amounts(m.Items())[1]; got != 5 {
		t.Fatalf("expected amount 5, got %d", got)
	}
	if len(notifier.all()) != 7 {
		t.Fatalf("expected 7 notifications, got %d", len(notifier.all()))
	}
	assertPersisted(t, store, m.Items())
}

func TestReadsDoNotWaitOnInFlightMutation(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().withProduct(1, "a", "10", 5)
	inv.entered = make(chan struct{})
	inv.release = make(chan struct{})
	store := newStubStore()
	seedSnapshot(t, store, []LineItem{{Product: Product{ID: 1}, Amount: 1}})
	m := newTestManager(t, inv, store, &recordingNotifier{})

	done := make(chan error, 1)
	go func() { done <- m.AddProduct(context.Background(), 1) }()
	<-inv.entered

	read := make(chan []LineItem, 1)
	go func() { read <- m.Items() }()
	select {
	case items := <-read:
		if amounts(items)[1] != 1 {
			t.Fatalf("reader should see the last committed state, got %+v", items)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Items() blocked on an in-flight mutation")
	}

	close(inv.release)
	if err := <-done; err != nil {
		t.Fatalf("add: %v", err)
	}
	if amounts(m.Items())[1] != 2 {
		t.Fatalf("expected committed amount 2, got %+v", m.Items())
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	t.Parallel()

	inv := newStubInventory().
		withProduct(1, "a", "10", 0).
		withProduct(2, "b", "20", 1).
		withProduct(3, "c", "30", 2).
		withProduct(4, "d", "40", 3)
	store := newStubStore()
	m := newTestManager(t, inv, store, &recordingNotifier{})
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 400; i++ {
		id := rnd.Intn(5) + 1
		before := m.Items()
		var err error
		switch rnd.Intn(4) {
		case 0, 1:
			err = m.AddProduct(ctx, id)
		case 2:
			err = m.RemoveProduct(ctx, id)
		default:
			err = m.UpdateProductAmount(ctx, id, rnd.Intn(6)-1)
		}
		if rnd.Intn(10) == 0 {
			inv.setStock(rnd.Intn(4)+1, rnd.Intn(5))
		}

		after := m.Items()
		assertInvariants(t, after)
		if err != nil {
			if diff := cmp.Diff(before, after, decimalEqual); diff != "" {
				t.Fatalf("op %d failed (%v) but changed the cart:\n%s", i, err, diff)
			}
		}
		if store.saveCount() > 0 {
			assertPersisted(t, store, after)
		}
	}
}

func TestOperationsRecordMetricsAndSpans(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	inv := newStubInventory().withProduct(1, "a", "10", 1)
	m, err := NewManager(context.Background(), ManagerParams{
		SessionID:      testSession,
		Inventory:      inv,
		Store:          newStubStore(),
		Notifier:       &recordingNotifier{},
		Metrics:        metrics.NewCartMetrics(reg),
		TracerProvider: tp,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()

	_ = m.AddProduct(ctx, 1)
	_ = m.AddProduct(ctx, 1)
	_ = m.UpdateProductAmount(ctx, 1, 0)
	_ = m.RemoveProduct(ctx, 2)

	wantCounts := map[[2]string]float64{
		{OperationAddProduct, metrics.OutcomeSuccess}:       1,
		{OperationAddProduct, metrics.OutcomeOutOfStock}:    1,
		{OperationUpdateProductAmount, metrics.OutcomeNoop}: 1,
		{OperationRemoveProduct, metrics.OutcomeNotInCart}:  1,
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[[2]string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "cart_operation_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var key [2]string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "operation":
					key[0] = label.GetValue()
				case "outcome":
					key[1] = label.GetValue()
				}
			}
			got[key] = metric.GetCounter().GetValue()
		}
	}
	if diff := cmp.Diff(wantCounts, got); diff != "" {
		t.Fatalf("unexpected counters (-want +got):\n%s", diff)
	}

	spans := recorder.Ended()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}
	if spans[0].Name() != "cart.AddProduct" || spans[3].Name() != "cart.RemoveProduct" {
		t.Fatalf("unexpected span names %s, %s", spans[0].Name(), spans[3].Name())
	}
	foundID := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == attribute.Key("product.id") && kv.Value.AsInt64() == 1 {
			foundID = true
		}
	}
	if !foundID {
		t.Fatalf("span missing product.id attribute: %v", spans[0].Attributes())
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("rejected add should mark span as error, got %v", spans[1].Status())
	}
}
