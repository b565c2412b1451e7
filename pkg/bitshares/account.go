package bitshares

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// GetAccount returns the full state of the account with the given name, or
// nil when the node knows no such account.
func GetAccount(ctx context.Context, c Caller, name string) (*FullAccount, error) {
	accounts, err := NewDatabaseAPI(c).GetFullAccounts(ctx, []string{name})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch account %s", name)
	}
	if len(accounts) > 1 {
		return nil, ErrAmbiguousAccount
	}

	for i := len(accounts) - 1; i >= 0; i-- {
		if accounts[i].Account.Account.Name == accounts[i].Key {
			fa := accounts[i].Account
			return &fa, nil
		}
	}
	return nil, nil
}

// AccountExists reports whether an account with the given name exists.
func AccountExists(ctx context.Context, c Caller, name string) (bool, error) {
	account, err := NewDatabaseAPI(c).GetAccountByName(ctx, name)
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up account %s", name)
	}
	return account != nil, nil
}

// GetAccountBalance returns the core asset balance of the account in whole
// units. An account without a core balance has zero.
func GetAccountBalance(ctx context.Context, c Caller, nameOrID string) (decimal.Decimal, error) {
	balances, err := NewDatabaseAPI(c).GetAccountBalances(ctx, nameOrID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to retrieve account balance, most likely due to account not existing")
	}

	for _, b := range balances {
		if b.AssetID == CoreAssetID {
			return b.Decimal(CoreAssetPrecision), nil
		}
	}
	return decimal.Zero, nil
}

// GetTransactionsHistory returns the most recent transfers of the account,
// at most limit of them (DefaultHistoryLimit when limit is zero).
func GetTransactionsHistory(ctx context.Context, c Caller, name string, limit uint32) ([]OperationHistoryObject, error) {
	exists, err := AccountExists(ctx, c, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(ErrAccountNotFound, "unable to fetch transactions of %s", name)
	}

	ops, err := NewHistoryAPI(c).GetAccountHistoryOperations(ctx, name, OpTransfer, HistoryRange{
		Start: FirstOperationHistoryID,
		Stop:  FirstOperationHistoryID,
		Limit: limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch transactions of %s", name)
	}
	if ops == nil {
		ops = []OperationHistoryObject{}
	}
	return ops, nil
}
