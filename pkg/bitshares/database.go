package bitshares

import (
	"context"
	"encoding/json"

	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
)

// DatabaseAPI wraps the node's database namespace.
type DatabaseAPI struct {
	c Caller
}

func NewDatabaseAPI(c Caller) *DatabaseAPI {
	return &DatabaseAPI{c: c}
}

// GetObjects fetches objects of any kind by id. Missing objects are nil
// entries; DecodeObject turns an entry into a typed value.
func (d *DatabaseAPI) GetObjects(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	raw, err := call[[]json.RawMessage](ctx, d.c, NamespaceDatabase, "get_objects", nonNil(ids))
	if err != nil {
		return nil, err
	}
	return nullsToNil(raw), nil
}

func (d *DatabaseAPI) GetDynamicGlobalProperties(ctx context.Context) (*DynamicGlobalPropertyObject, error) {
	return call[*DynamicGlobalPropertyObject](ctx, d.c, NamespaceDatabase, "get_dynamic_global_properties")
}

func (d *DatabaseAPI) GetChainID(ctx context.Context) (string, error) {
	return call[string](ctx, d.c, NamespaceDatabase, "get_chain_id")
}

// GetKeyReferences returns, per public key, the ids of the accounts it controls.
func (d *DatabaseAPI) GetKeyReferences(ctx context.Context, keys []string) ([][]string, error) {
	return call[[][]string](ctx, d.c, NamespaceDatabase, "get_key_references", nonNil(keys))
}

// GetAccountByName returns nil when no account has that name.
func (d *DatabaseAPI) GetAccountByName(ctx context.Context, name string) (*AccountObject, error) {
	return call[*AccountObject](ctx, d.c, NamespaceDatabase, "get_account_by_name", name)
}

// GetAccounts fetches accounts by name or id; unknown ones are nil.
func (d *DatabaseAPI) GetAccounts(ctx context.Context, namesOrIDs []string) ([]*AccountObject, error) {
	return call[[]*AccountObject](ctx, d.c, NamespaceDatabase, "get_accounts", nonNil(namesOrIDs))
}

// GetFullAccounts fetches the full state of each account. The node omits
// accounts it does not know.
func (d *DatabaseAPI) GetFullAccounts(ctx context.Context, namesOrIDs []string) ([]NamedFullAccount, error) {
	return call[[]NamedFullAccount](ctx, d.c, NamespaceDatabase, "get_full_accounts", nonNil(namesOrIDs), false)
}

// GetAccountBalances returns the balances of an account, restricted to
// assetIDs when it is not empty.
func (d *DatabaseAPI) GetAccountBalances(ctx context.Context, nameOrID string, assetIDs ...string) ([]AssetAmount, error) {
	return call[[]AssetAmount](ctx, d.c, NamespaceDatabase, "get_account_balances", nameOrID, nonNil(assetIDs))
}

func (d *DatabaseAPI) GetNamedAccountBalances(ctx context.Context, name string, assetIDs ...string) ([]AssetAmount, error) {
	return call[[]AssetAmount](ctx, d.c, NamespaceDatabase, "get_named_account_balances", name, nonNil(assetIDs))
}

// GetRequiredFees estimates the fee of each operation, paid in the given asset.
func (d *DatabaseAPI) GetRequiredFees(ctx context.Context, ops []Operation, feeAssetSymbolOrID string) ([]RequiredFee, error) {
	if ops == nil {
		ops = []Operation{}
	}
	return call[[]RequiredFee](ctx, d.c, NamespaceDatabase, "get_required_fees", ops, feeAssetSymbolOrID)
}

// LookupAssetSymbols resolves symbols or ids to assets; unknown ones are nil.
func (d *DatabaseAPI) LookupAssetSymbols(ctx context.Context, symbolsOrIDs []string) ([]*AssetObject, error) {
	return call[[]*AssetObject](ctx, d.c, NamespaceDatabase, "lookup_asset_symbols", nonNil(symbolsOrIDs))
}

// SubscribeObjects fetches objects and keeps them under watch: every later
// change of one of them is delivered to listener until the subscription ends.
func (d *DatabaseAPI) SubscribeObjects(ctx context.Context, ids []string, listener rpc.Listener) (*rpc.Subscription, []json.RawMessage, error) {
	s, err := d.subscriber()
	if err != nil {
		return nil, nil, err
	}
	sub, raw, err := s.Subscribe(ctx, NamespaceDatabase, "get_objects", []any{nonNil(ids)}, listener)
	if err != nil {
		return nil, nil, err
	}
	var objects []json.RawMessage
	if err := json.Unmarshal(raw, &objects); err != nil {
		sub.Unsubscribe()
		return nil, nil, &DecodeError{Namespace: NamespaceDatabase, Method: "get_objects", Err: err}
	}
	return sub, nullsToNil(objects), nil
}

// SubscribeFullAccounts fetches accounts with subscribe=true so the node
// reports changes of every object they own.
func (d *DatabaseAPI) SubscribeFullAccounts(ctx context.Context, namesOrIDs []string, listener rpc.Listener) (*rpc.Subscription, []NamedFullAccount, error) {
	s, err := d.subscriber()
	if err != nil {
		return nil, nil, err
	}
	sub, raw, err := s.Subscribe(ctx, NamespaceDatabase, "get_full_accounts", []any{nonNil(namesOrIDs), true}, listener)
	if err != nil {
		return nil, nil, err
	}
	var accounts []NamedFullAccount
	if err := decode(raw, &accounts); err != nil {
		sub.Unsubscribe()
		return nil, nil, &DecodeError{Namespace: NamespaceDatabase, Method: "get_full_accounts", Err: err}
	}
	return sub, accounts, nil
}

func (d *DatabaseAPI) subscriber() (Subscriber, error) {
	s, ok := d.c.(Subscriber)
	if !ok {
		return nil, ErrSubscribeUnsupported
	}
	return s, nil
}

func nullsToNil(objects []json.RawMessage) []json.RawMessage {
	for i, obj := range objects {
		if string(obj) == "null" {
			objects[i] = nil
		}
	}
	return objects
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
