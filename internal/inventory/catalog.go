package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
)

// Seed is the on-disk catalog format: {"stock":[...],"products":[...]}.
type Seed struct {
	Stock    []cart.Stock   `json:"stock"`
	Products []cart.Product `json:"products"`
}

// Catalog is an in-memory inventory built from a Seed.
type Catalog struct {
	mu       sync.RWMutex
	stock    map[int]int
	products map[int]cart.Product
	order    []int
}

var _ cart.Inventory = (*Catalog)(nil)

// NewCatalog validates the seed and indexes it by product id.
func NewCatalog(seed Seed) (*Catalog, error) {
	c := &Catalog{
		stock:    make(map[int]int, len(seed.Stock)),
		products: make(map[int]cart.Product, len(seed.Products)),
	}
	for _, s := range seed.Stock {
		if s.Amount < 0 {
			return nil, fmt.Errorf("stock for product %d is negative", s.ID)
		}
		if _, dup := c.stock[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stock entry for product %d", s.ID)
		}
		c.stock[s.ID] = s.Amount
	}
	for _, p := range seed.Products {
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product %d", p.ID)
		}
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// LoadCatalog reads a JSON seed file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decoding inventory seed: %w", err)
	}
	return NewCatalog(seed)
}

func (c *Catalog) GetStock(_ context.Context, productID int) (cart.Stock, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, ok := c.stock[productID]
	if !ok {
		return cart.Stock{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("stock for product %d not found", productID))
	}
	return cart.Stock{ID: productID, Amount: amount}, nil
}

func (c *Catalog) GetProduct(_ context.Context, productID int) (cart.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return cart.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %d not found", productID))
	}
	return p, nil
}

// Products lists the catalog in seed order.
func (c *Catalog) Products() []cart.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]cart.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// StockLevels lists all stock entries ordered by product id.
func (c *Catalog) StockLevels() []cart.Stock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.stock))
	for id := range c.stock {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]cart.Stock, 0, len(ids))
	for _, id := range ids {
		out = append(out, cart.Stock{ID: id, Amount: c.stock[id]})
	}
	return out
}

// SetStock overrides the available amount for a product.
func (c *Catalog) SetStock(productID, amount int) error {
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock amount must be non-negative")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[productID] = amount
	return nil
}
