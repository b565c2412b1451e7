package bitshares

import (
	"encoding/json"
	"fmt"
)

// Operation type tags of the operations this package decodes.
const (
	OpTransfer         = 0
	OpLimitOrderCreate = 1
	OpLimitOrderCancel = 2
	OpCallOrderUpdate  = 3
	OpFillOrder        = 4
)

// Operation result type tags.
const (
	ResultVoid   = 0
	ResultObject = 1
	ResultAsset  = 2
)

var operationNames = map[int]string{
	OpTransfer:         "transfer",
	OpLimitOrderCreate: "limit_order_create",
	OpLimitOrderCancel: "limit_order_cancel",
	OpCallOrderUpdate:  "call_order_update",
	OpFillOrder:        "fill_order",
}

// OperationName returns the protocol name of an operation type, or "op_<n>"
// for types this package does not decode.
func OperationName(opType int) string {
	if name, ok := operationNames[opType]; ok {
		return name
	}
	return fmt.Sprintf("op_%d", opType)
}

func errTupleLen(what string, want, got int) error {
	return fmt.Errorf("%s must be a %d-element array, got %d", what, want, got)
}

// Memo is the encrypted note attached to a transfer.
type Memo struct {
	From    string    `json:"from"`
	To      string    `json:"to"`
	Nonce   MemoNonce `json:"nonce"`
	Message string    `json:"message"`
}

// MemoNonce is the uint64 nonce of a memo. Nodes send it as a string or a
// number; it is kept as its decimal text because that text keys the cipher.
type MemoNonce string

func (n *MemoNonce) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*n = MemoNonce(num.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid memo nonce: %w", err)
	}
	*n = MemoNonce(s)
	return nil
}

// TransferOperation (type 0).
type TransferOperation struct {
	Fee        AssetAmount     `json:"fee"`
	From       string          `json:"from" validate:"required,objectid"`
	To         string          `json:"to" validate:"required,objectid"`
	Amount     AssetAmount     `json:"amount"`
	Memo       *Memo           `json:"memo,omitempty"`
	Extensions json.RawMessage `json:"extensions,omitempty"`
}

// LimitOrderCreateOperation (type 1).
type LimitOrderCreateOperation struct {
	Fee          AssetAmount     `json:"fee"`
	Seller       string          `json:"seller" validate:"required,objectid"`
	AmountToSell AssetAmount     `json:"amount_to_sell"`
	MinToReceive AssetAmount     `json:"min_to_receive"`
	Expiration   TimePointSec    `json:"expiration"`
	FillOrKill   bool            `json:"fill_or_kill"`
	Extensions   json.RawMessage `json:"extensions,omitempty"`
}

// LimitOrderCancelOperation (type 2).
type LimitOrderCancelOperation struct {
	Fee              AssetAmount     `json:"fee"`
	FeePayingAccount string          `json:"fee_paying_account" validate:"required,objectid"`
	Order            string          `json:"order" validate:"required,objectid"`
	Extensions       json.RawMessage `json:"extensions,omitempty"`
}

// CallOrderUpdateOperation (type 3).
type CallOrderUpdateOperation struct {
	Fee             AssetAmount     `json:"fee"`
	FundingAccount  string          `json:"funding_account" validate:"required,objectid"`
	DeltaCollateral AssetAmount     `json:"delta_collateral"`
	DeltaDebt       AssetAmount     `json:"delta_debt"`
	Extensions      json.RawMessage `json:"extensions,omitempty"`
}

// FillOrderOperation (type 4) is virtual: nodes emit it, clients never send it.
type FillOrderOperation struct {
	Fee       AssetAmount `json:"fee"`
	OrderID   string      `json:"order_id"`
	AccountID string      `json:"account_id" validate:"required,objectid"`
	Pays      AssetAmount `json:"pays"`
	Receives  AssetAmount `json:"receives"`
	FillPrice Price       `json:"fill_price"`
	IsMaker   bool        `json:"is_maker"`
}

// Operation is the `[type, payload]` pair of the wire format. Payload stays
// raw until Decode is called so unknown operation types survive a round trip.
type Operation struct {
	Type    int
	Payload json.RawMessage
}

// NewOperation builds an operation from a typed payload.
func NewOperation(opType int, payload any) (Operation, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Operation{}, fmt.Errorf("failed to marshal operation %d: %w", opType, err)
	}
	return Operation{Type: opType, Payload: data}, nil
}

func (op *Operation) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("invalid operation: %w", err)
	}
	if len(tuple) != 2 {
		return errTupleLen("operation", 2, len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &op.Type); err != nil {
		return fmt.Errorf("invalid operation type: %w", err)
	}
	op.Payload = tuple[1]
	return nil
}

func (op Operation) MarshalJSON() ([]byte, error) {
	payload := op.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return json.Marshal([]any{op.Type, payload})
}

// Decode returns the typed payload for known operation types and the raw
// payload otherwise.
func (op Operation) Decode() (any, error) {
	var target any
	switch op.Type {
	case OpTransfer:
		target = &TransferOperation{}
	case OpLimitOrderCreate:
		target = &LimitOrderCreateOperation{}
	case OpLimitOrderCancel:
		target = &LimitOrderCancelOperation{}
	case OpCallOrderUpdate:
		target = &CallOrderUpdateOperation{}
	case OpFillOrder:
		target = &FillOrderOperation{}
	default:
		return op.Payload, nil
	}

	if err := json.Unmarshal(op.Payload, target); err != nil {
		return nil, fmt.Errorf("failed to decode operation %d: %w", op.Type, err)
	}
	if err := validateValue(target); err != nil {
		return nil, fmt.Errorf("invalid operation %d: %w", op.Type, err)
	}
	return target, nil
}

// Transfer decodes the payload of a transfer operation.
func (op Operation) Transfer() (*TransferOperation, error) {
	if op.Type != OpTransfer {
		return nil, fmt.Errorf("operation type %d is not a transfer", op.Type)
	}
	v, err := op.Decode()
	if err != nil {
		return nil, err
	}
	return v.(*TransferOperation), nil
}

// OperationResult is the `[type, payload]` result of an applied operation.
type OperationResult struct {
	Type    int
	Payload json.RawMessage
}

func (r *OperationResult) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("invalid operation result: %w", err)
	}
	if len(tuple) != 2 {
		return errTupleLen("operation result", 2, len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &r.Type); err != nil {
		return fmt.Errorf("invalid operation result type: %w", err)
	}
	r.Payload = tuple[1]
	return nil
}

func (r OperationResult) MarshalJSON() ([]byte, error) {
	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return json.Marshal([]any{r.Type, payload})
}

// ObjectID returns the id created by the operation.
func (r OperationResult) ObjectID() (string, bool) {
	if r.Type != ResultObject {
		return "", false
	}
	var id string
	if err := json.Unmarshal(r.Payload, &id); err != nil {
		return "", false
	}
	return id, true
}

// Asset returns the amount produced by the operation.
func (r OperationResult) Asset() (AssetAmount, bool) {
	if r.Type != ResultAsset {
		return AssetAmount{}, false
	}
	var amount AssetAmount
	if err := json.Unmarshal(r.Payload, &amount); err != nil {
		return AssetAmount{}, false
	}
	return amount, true
}

// OperationHistoryObject (1.11.x) is one applied operation.
type OperationHistoryObject struct {
	ID         string          `json:"id" validate:"required,objectid"`
	Op         Operation       `json:"op"`
	Result     OperationResult `json:"result"`
	BlockNum   uint32          `json:"block_num"`
	TrxInBlock uint16          `json:"trx_in_block"`
	OpInTrx    uint16          `json:"op_in_trx"`
	VirtualOp  uint64          `json:"virtual_op"`
	BlockTime  *TimePointSec   `json:"block_time,omitempty"`
}

// ParsedOperationHistory is a display-friendly view of a history entry.
type ParsedOperationHistory struct {
	ID        string
	Type      int
	Operation any
	BlockNum  uint32
	Timestamp *TimePointSec
}

// Parse decodes the operation payload.
func (h OperationHistoryObject) Parse() (ParsedOperationHistory, error) {
	op, err := h.Op.Decode()
	if err != nil {
		return ParsedOperationHistory{}, fmt.Errorf("history entry %s: %w", h.ID, err)
	}
	return ParsedOperationHistory{
		ID:        h.ID,
		Type:      h.Op.Type,
		Operation: op,
		BlockNum:  h.BlockNum,
		Timestamp: h.BlockTime,
	}, nil
}
