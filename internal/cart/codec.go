package cart

import (
	"encoding/json"
	"fmt"
)

func encodeSnapshot(items []LineItem) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// decodeSnapshot parses a stored cart and rejects anything violating the cart
// invariants: duplicate product ids or amounts below one.
func decodeSnapshot(payload []byte) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode cart snapshot: %w", err)
	}
	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		if item.Amount < 1 {
			return nil, fmt.Errorf("product %d has invalid amount %d", item.ID, item.Amount)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("product %d appears more than once", item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}
