// Package cart models the shopping cart kept in local storage.
package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medistore/backend/internal/domain/shared"
)

// StorageKey is the local-storage key holding the serialized cart
const StorageKey = "cart"

// MergePolicy decides what Add does with a product id already in the cart
type MergePolicy string

const (
	// MergeAppend appends a new line for every add
	MergeAppend MergePolicy = "append"
	// MergeQuantities adds the quantity onto the existing line
	MergeQuantities MergePolicy = "merge"
)

// ParseMergePolicy parses a configured policy name, defaulting to MergeAppend
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeAppend:
		return MergeAppend, nil
	case MergeQuantities:
		return MergeQuantities, nil
	}
	return "", shared.ErrInvalidInput.WithMessage(fmt.Sprintf("unknown cart merge policy %q", s))
}

// Item is one cart line
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Validate checks a single line
func (i Item) Validate() error {
	if strings.TrimSpace(i.ProductID) == "" {
		return shared.ErrInvalidInput.WithMessage("Product ID cannot be empty")
	}
	if i.Quantity <= 0 {
		return shared.ErrInvalidInput.WithMessage("Quantity must be positive")
	}
	return nil
}

// Cart is an ordered list of lines. Operations return a new slice and never
// mutate the receiver.
type Cart []Item

// Add returns the cart with item added under policy
func (c Cart) Add(item Item, policy MergePolicy) (Cart, error) {
	if err := item.Validate(); err != nil {
		return c, err
	}
	out := c.clone()
	if policy == MergeQuantities {
		for i := range out {
			if out[i].ProductID == item.ProductID {
				out[i].Quantity += item.Quantity
				return out, nil
			}
		}
	}
	return append(out, item), nil
}

// Remove returns the cart without any line for productID
func (c Cart) Remove(productID string) Cart {
	out := make(Cart, 0, len(c))
	for _, it := range c {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

// Count returns the number of lines
func (c Cart) Count() int {
	return len(c)
}

// Units returns the total quantity across lines
func (c Cart) Units() int {
	n := 0
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c), len(c)+1)
	copy(out, c)
	return out
}

// Encode serializes the cart as a JSON array
func (c Cart) Encode() (string, error) {
	if c == nil {
		c = Cart{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored cart. An empty value is an empty cart.
func Decode(s string) (Cart, error) {
	if strings.TrimSpace(s) == "" {
		return Cart{}, nil
	}
	var c Cart
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c == nil {
		c = Cart{}
	}
	return c, nil
}
