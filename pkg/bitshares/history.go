package bitshares

import "context"

// DefaultHistoryLimit is the largest page the history namespace serves.
const DefaultHistoryLimit = 100

// HistoryAPI wraps the node's history namespace.
type HistoryAPI struct {
	c Caller
}

func NewHistoryAPI(c Caller) *HistoryAPI {
	return &HistoryAPI{c: c}
}

// HistoryRange selects operations by history object id, newest first.
// Empty bounds default to FirstOperationHistoryID, a zero limit to
// DefaultHistoryLimit.
type HistoryRange struct {
	Start string
	Stop  string
	Limit uint32
}

func (r HistoryRange) withDefaults() HistoryRange {
	if r.Start == "" {
		r.Start = FirstOperationHistoryID
	}
	if r.Stop == "" {
		r.Stop = FirstOperationHistoryID
	}
	if r.Limit == 0 || r.Limit > DefaultHistoryLimit {
		r.Limit = DefaultHistoryLimit
	}
	return r
}

// GetAccountHistoryOperations returns the account's operations of one type.
func (h *HistoryAPI) GetAccountHistoryOperations(ctx context.Context, nameOrID string, opType int, r HistoryRange) ([]OperationHistoryObject, error) {
	r = r.withDefaults()
	return call[[]OperationHistoryObject](ctx, h.c, NamespaceHistory, "get_account_history_operations",
		nameOrID, opType, r.Start, r.Stop, r.Limit)
}

// GetAccountHistory returns the account's operations of all types.
func (h *HistoryAPI) GetAccountHistory(ctx context.Context, nameOrID string, r HistoryRange) ([]OperationHistoryObject, error) {
	r = r.withDefaults()
	return call[[]OperationHistoryObject](ctx, h.c, NamespaceHistory, "get_account_history",
		nameOrID, r.Stop, r.Limit, r.Start)
}

// RelativeRange selects operations by their per-account sequence number.
// A zero Start means the most recent operation.
type RelativeRange struct {
	Stop  uint64
	Limit uint32
	Start uint64
}

// GetRelativeAccountHistory pages through the account's operations by sequence number.
func (h *HistoryAPI) GetRelativeAccountHistory(ctx context.Context, nameOrID string, r RelativeRange) ([]OperationHistoryObject, error) {
	if r.Limit == 0 || r.Limit > DefaultHistoryLimit {
		r.Limit = DefaultHistoryLimit
	}
	return call[[]OperationHistoryObject](ctx, h.c, NamespaceHistory, "get_relative_account_history",
		nameOrID, r.Stop, r.Limit, r.Start)
}
