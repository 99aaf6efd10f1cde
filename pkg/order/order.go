// Package order builds order payloads from cart snapshots and places
// them against the backend.
package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"foodhub/pkg/cart"
)

// ErrEmptyCart rejects placement before any network call is made.
var ErrEmptyCart = errors.New("cart is empty")

// Item is one ordered meal line as the backend expects it.
type Item struct {
	MealID   string  `json:"mealId"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the placement payload.
type Order struct {
	TotalAmount     float64 `json:"totalAmount"`
	DeliveryAddress string  `json:"deliveryAddress"`
	DeliveryPhone   string  `json:"deliveryPhone"`
	OrderItems      []Item  `json:"orderItems"`
}

// Placed identifies the created order.
type Placed struct {
	ID string `json:"id"`
}

// FromSnapshot converts the cart into a placement payload. An empty cart
// is rejected here, before anything touches the network.
func FromSnapshot(snap cart.Snapshot, address, phone string) (Order, error) {
	if len(snap.Items) == 0 {
		return Order{}, ErrEmptyCart
	}
	o := Order{
		DeliveryAddress: address,
		DeliveryPhone:   phone,
		OrderItems:      make([]Item, 0, len(snap.Items)),
	}
	for _, l := range snap.Items {
		o.TotalAmount += l.Price * float64(l.Quantity)
		o.OrderItems = append(o.OrderItems, Item{
			MealID:   l.ID,
			Quantity: l.Quantity,
			Price:    l.Price,
		})
	}
	return o, nil
}

// Client places orders against the backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the backend at baseURL (no trailing
// slash).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Place posts the order, forwarding the visitor's cookies so the backend
// attributes it to the right account. Only a 2xx answer clears the way
// for the caller to clear the cart.
func (c *Client) Place(ctx context.Context, cookieHeader string, o Order) (Placed, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return Placed{}, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return Placed{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return Placed{}, fmt.Errorf("place order: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return Placed{}, fmt.Errorf("place order: %s (status %d)", apiErr.Message, res.StatusCode)
	}

	var p Placed
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return Placed{}, fmt.Errorf("decode order response: %w", err)
	}
	return p, nil
}
