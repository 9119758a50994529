package cart

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/shopspring/decimal"
)

type stubInventory struct {
	mu         sync.Mutex
	stock      map[int]int
	products   map[int]Product
	stockErr   error
	productErr error

	stockCalls   int
	productCalls int

	// when set, GetStock signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func newStubInventory() *stubInventory {
	return &stubInventory{
		stock:    map[int]int{},
		products: map[int]Product{},
	}
}

func (s *stubInventory) withProduct(id int, title string, price string, stock int) *stubInventory {
	s.products[id] = Product{ID: id, Title: title, Price: decimal.RequireFromString(price), Image: "https://img.example/" + title + ".jpg"}
	s.stock[id] = stock
	return s
}

func (s *stubInventory) GetStock(ctx context.Context, productID int) (Stock, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockCalls++
	if s.stockErr != nil {
		return Stock{}, s.stockErr
	}
	amount, ok := s.stock[productID]
	if !ok {
		return Stock{}, pkgerrors.New(pkgerrors.CodeNotFound, "stock not found")
	}
	return Stock{ID: productID, Amount: amount}, nil
}

func (s *stubInventory) GetProduct(ctx context.Context, productID int) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productCalls++
	if s.productErr != nil {
		return Product{}, s.productErr
	}
	p, ok := s.products[productID]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return p, nil
}

func (s *stubInventory) setStock(id, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[id] = amount
}

func (s *stubInventory) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockCalls, s.productCalls
}

type stubStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	loadErr error
	saveErr error
	saves   int
	loadCtx error

	// when set, Load of gateKey signals gateEntered and waits for gate
	gateKey     string
	gate        chan struct{}
	gateEntered chan struct{}
}

func newStubStore() *stubStore {
	return &stubStore{data: map[string][]byte{}}
}

func (s *stubStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s.gate != nil && key == s.gateKey {
		s.gateEntered <- struct{}{}
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCtx = ctx.Err()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *stubStore) Save(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data[key] = append([]byte(nil), payload...)
	return nil
}

func (s *stubStore) snapshot(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key]
}

func (s *stubStore) lastLoadCtxErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCtx
}

func (s *stubStore) setLoadErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func (s *stubStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

var errTransport = errors.New("connection refused")
