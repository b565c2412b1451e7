package bitshares

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequiredFee is the fee of one operation. Plain operations cost a single
// amount; proposals report their own fee followed by the fees of the
// proposed operations.
type RequiredFee struct {
	Amount *AssetAmount
	Nested []RequiredFee
}

func (f *RequiredFee) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty fee")
	}

	switch data[0] {
	case '{':
		var amount AssetAmount
		if err := json.Unmarshal(data, &amount); err != nil {
			return fmt.Errorf("invalid fee amount: %w", err)
		}
		f.Amount = &amount
		return nil
	case '[':
		var nested []RequiredFee
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		f.Nested = nested
		return nil
	default:
		return fmt.Errorf("unexpected fee encoding %q", data)
	}
}

// Flatten lists every amount in depth-first order.
func (f RequiredFee) Flatten() []AssetAmount {
	var out []AssetAmount
	if f.Amount != nil {
		out = append(out, *f.Amount)
	}
	for _, n := range f.Nested {
		out = append(out, n.Flatten()...)
	}
	return out
}

// Total sums the amounts of one asset.
func (f RequiredFee) Total(assetID string) ShareType {
	var total ShareType
	for _, a := range f.Flatten() {
		if a.AssetID == assetID {
			total += a.Amount
		}
	}
	return total
}
