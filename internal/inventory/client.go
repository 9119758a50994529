package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20

// Client reads stock and product data from the inventory HTTP API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logg    *logger.Logger
}

var _ cart.Inventory = (*Client)(nil)

// NewClient builds a client for cfg.BaseURL with an instrumented transport.
func NewClient(cfg config.InventoryConfig, logg *logger.Logger) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("inventory base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing inventory base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("inventory base url %q must be absolute", base)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Client{
		baseURL: parsed,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logg: logg,
	}, nil
}

// GetStock returns the available amount for productID.
func (c *Client) GetStock(ctx context.Context, productID int) (cart.Stock, error) {
	var stock cart.Stock
	if err := c.getJSON(ctx, &stock, "stock", strconv.Itoa(productID)); err != nil {
		return cart.Stock{}, err
	}
	if stock.Amount < 0 {
		return cart.Stock{}, fmt.Errorf("inventory returned negative stock %d for product %d", stock.Amount, productID)
	}
	return stock, nil
}

// GetProduct returns the display data for productID.
func (c *Client) GetProduct(ctx context.Context, productID int) (cart.Product, error) {
	var product cart.Product
	if err := c.getJSON(ctx, &product, "products", strconv.Itoa(productID)); err != nil {
		return cart.Product{}, err
	}
	return product, nil
}

// Ping checks the inventory API answers.
func (c *Client) Ping(ctx context.Context) error {
	var products []cart.Product
	return c.getJSON(ctx, &products, "products")
}

func (c *Client) getJSON(ctx context.Context, dst any, elems ...string) error {
	endpoint := c.baseURL.JoinPath(elems...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("building inventory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory request %s: %w", endpoint.Path, err)
	}
	defer resp.Body.Close()

	c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
		"inventory_path": endpoint.Path,
		"status":         resp.StatusCode,
		"duration_ms":    time.Since(start).Milliseconds(),
	}), "inventory request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory %s not found", endpoint.Path))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("inventory %s: unexpected status %d", endpoint.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decoding inventory %s: %w", endpoint.Path, err)
	}
	return nil
}
