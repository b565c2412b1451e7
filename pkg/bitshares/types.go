package bitshares

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// CoreAssetID is the id of the chain's core asset (BTS on mainnet).
	CoreAssetID = "1.3.0"
	// CoreAssetSymbol is the ticker of the core asset.
	CoreAssetSymbol = "BTS"
	// CoreAssetPrecision is the number of decimal places of the core asset.
	CoreAssetPrecision = 5

	// FirstOperationHistoryID doubles as the open end of a history range.
	FirstOperationHistoryID = "1.11.0"
)

var objectIDRegex = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+$`)

// IsObjectID reports whether s looks like a Graphene object id ("space.type.instance").
func IsObjectID(s string) bool {
	return objectIDRegex.MatchString(s)
}

// ShareType is a Graphene int64 amount. Nodes encode it either as a JSON
// number or, for values outside the float-safe range, as a decimal string.
type ShareType int64

func (s *ShareType) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid share amount %q: %w", raw, err)
	}
	*s = ShareType(v)
	return nil
}

// Decimal converts the raw amount into units of an asset with the given precision.
func (s ShareType) Decimal(precision uint8) decimal.Decimal {
	return decimal.New(int64(s), -int32(precision))
}

const timePointSecLayout = "2006-01-02T15:04:05"

// TimePointSec is a second-resolution UTC timestamp in the node's
// "YYYY-MM-DDTHH:MM:SS" format.
type TimePointSec struct {
	time.Time
}

func (t *TimePointSec) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid time point: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.ParseInLocation(timePointSecLayout, raw, time.UTC)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid time point %q: %w", raw, err)
		}
	}
	t.Time = parsed.UTC()
	return nil
}

func (t TimePointSec) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timePointSecLayout))
}

func (t TimePointSec) String() string {
	return t.UTC().Format(timePointSecLayout)
}

// AssetAmount is an amount in the smallest units of an asset.
type AssetAmount struct {
	Amount  ShareType `json:"amount"`
	AssetID string    `json:"asset_id" validate:"required,objectid"`
}

// Decimal scales the amount by the asset precision.
func (a AssetAmount) Decimal(precision uint8) decimal.Decimal {
	return a.Amount.Decimal(precision)
}

// Price is a base/quote ratio.
type Price struct {
	Base  AssetAmount `json:"base"`
	Quote AssetAmount `json:"quote"`
}

// Weighted is one `[key, weight]` entry of an authority.
type Weighted struct {
	Key    string
	Weight uint16
}

func (w *Weighted) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("authority entry must have 2 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &w.Key); err != nil {
		return fmt.Errorf("authority key: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &w.Weight); err != nil {
		return fmt.Errorf("authority weight: %w", err)
	}
	return nil
}

func (w Weighted) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{w.Key, w.Weight})
}

// Authority is a weighted multi-signature threshold.
type Authority struct {
	WeightThreshold uint32     `json:"weight_threshold"`
	AccountAuths    []Weighted `json:"account_auths"`
	KeyAuths        []Weighted `json:"key_auths"`
	AddressAuths    []Weighted `json:"address_auths,omitempty"`
}

// AccountOptions holds the memo key and voting settings of an account.
type AccountOptions struct {
	MemoKey       string          `json:"memo_key"`
	VotingAccount string          `json:"voting_account"`
	NumWitness    uint16          `json:"num_witness"`
	NumCommittee  uint16          `json:"num_committee"`
	Votes         []string        `json:"votes"`
	Extensions    json.RawMessage `json:"extensions,omitempty"`
}
