package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
	"github.com/kalutskii/etil-sterahstib/pkg/memo"
	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
	"github.com/kalutskii/etil-sterahstib/pkg/store"
)

var errMissingArgument = errors.New("missing argument")

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() < n {
		return fmt.Errorf("%w, usage: %s %s", errMissingArgument, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func chainIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "chain-id",
		Usage: "print the chain id of the node",
		Action: func(c *cli.Context) error {
			cl, err := connected(c)
			if err != nil {
				return err
			}

			chainID, err := cl.db.GetChainID(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(cl.out, chainID)
			return nil
		},
	}
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Usage:     "show an account with its balances and open orders",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cl, err := connected(c)
			if err != nil {
				return err
			}

			name := c.Args().First()
			account, err := bitshares.GetAccount(c.Context, cl.session, name)
			if err != nil {
				return err
			}
			if account == nil {
				return fmt.Errorf("%w: %s", bitshares.ErrAccountNotFound, name)
			}

			created := ""
			if account.Account.CreationTime != nil {
				created = account.Account.CreationTime.String()
			}
			t := newTable(cl.out, "Field", "Value")
			t.AppendRows([]table.Row{
				{"ID", account.Account.ID},
				{"Name", account.Account.Name},
				{"Registrar", account.RegistrarName},
				{"Referrer", account.ReferrerName},
				{"Memo key", account.Account.Options.MemoKey},
				{"Created", created},
				{"Operations", account.Statistics.TotalOps},
				{"Fees paid", cl.formatAmount(c.Context, bitshares.AssetAmount{Amount: account.Statistics.LifetimeFeesPaid, AssetID: bitshares.CoreAssetID})},
			})
			t.Render()

			balances := newTable(cl.out, "Asset", "Balance")
			for _, b := range account.Balances {
				balances.AppendRow(table.Row{b.AssetType, cl.formatAmount(c.Context, bitshares.AssetAmount{Amount: b.Balance, AssetID: b.AssetType})})
			}
			balances.Render()

			if len(account.LimitOrders) > 0 {
				orders := newTable(cl.out, "Order", "For sale", "Price", "Expires")
				for _, o := range account.LimitOrders {
					orders.AppendRow(table.Row{
						o.ID,
						cl.formatAmount(c.Context, bitshares.AssetAmount{Amount: o.ForSale, AssetID: o.SellPrice.Base.AssetID}),
						fmt.Sprintf("%s / %s", cl.formatAmount(c.Context, o.SellPrice.Base), cl.formatAmount(c.Context, o.SellPrice.Quote)),
						o.Expiration.String(),
					})
				}
				orders.Render()
			}
			return nil
		},
	}
}

func existsCommand() *cli.Command {
	return &cli.Command{
		Name:      "exists",
		Usage:     "report whether an account is registered",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cl, err := connected(c)
			if err != nil {
				return err
			}

			exists, err := bitshares.AccountExists(c.Context, cl.session, c.Args().First())
			if err != nil {
				return err
			}
			fmt.Fprintln(cl.out, exists)
			return nil
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "print the balance of an account, in the core asset unless --asset is given",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "asset", Aliases: []string{"a"}, Usage: "asset symbol or id"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cl, err := connected(c)
			if err != nil {
				return err
			}

			name := c.Args().First()
			if !c.IsSet("asset") {
				balance, err := bitshares.GetAccountBalance(c.Context, cl.session, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cl.out, "%s %s\n", balance.StringFixed(bitshares.CoreAssetPrecision), bitshares.CoreAssetSymbol)
				return nil
			}

			asset, err := cl.assets.Resolve(c.Context, c.String("asset"))
			if err != nil {
				return err
			}
			balances, err := cl.db.GetAccountBalances(c.Context, name, asset.ID)
			if err != nil {
				return err
			}

			amount := bitshares.AssetAmount{AssetID: asset.ID}
			for _, b := range balances {
				if b.AssetID == asset.ID {
					amount = b
				}
			}
			fmt.Fprintln(cl.out, cl.formatAmount(c.Context, amount))
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "list the transfers of an account",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "limit", Aliases: []string{"n"}, Value: bitshares.DefaultHistoryLimit, Usage: "number of entries"},
			&cli.BoolFlag{Name: "all", Usage: "include every operation type, not only transfers"},
			&cli.BoolFlag{Name: "store", Usage: "save the fetched entries to the history database"},
			&cli.BoolFlag{Name: "offline", Usage: "list entries from the history database without asking the node"},
			&cli.UintFlag{Name: "offset", Usage: "entries to skip, with --offline"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			name := c.Args().First()

			if c.Bool("offline") {
				return listStoredHistory(c, name)
			}

			cl, err := connected(c)
			if err != nil {
				return err
			}

			limit := uint32(c.Uint("limit"))
			var entries []bitshares.OperationHistoryObject
			if c.Bool("all") {
				entries, err = cl.history.GetAccountHistory(c.Context, name, bitshares.HistoryRange{Limit: limit})
			} else {
				entries, err = bitshares.GetTransactionsHistory(c.Context, cl.session, name, limit)
			}
			if err != nil {
				return err
			}

			if err := cl.renderHistory(c.Context, entries); err != nil {
				return err
			}

			if c.Bool("store") {
				hs, err := cl.historyStore()
				if err != nil {
					return err
				}
				inserted, err := hs.Save(c.Context, name, entries)
				if err != nil {
					return err
				}
				fmt.Fprintf(cl.out, "stored %d new of %d entries\n", inserted, len(entries))
			}
			return nil
		},
	}
}

func listStoredHistory(c *cli.Context, name string) error {
	cl := clientFrom(c)
	hs, err := cl.historyStore()
	if err != nil {
		return err
	}

	var filter store.HistoryFilter
	if !c.Bool("all") {
		transfer := bitshares.OpTransfer
		filter.OpType = &transfer
	}
	records, err := hs.List(c.Context, name, filter, &store.ListOptions{
		Offset: uint32(c.Uint("offset")),
		Limit:  uint32(c.Uint("limit")),
	})
	if err != nil {
		return err
	}

	entries := make([]bitshares.OperationHistoryObject, 0, len(records))
	for _, r := range records {
		entry, err := r.Operation()
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return cl.renderHistory(c.Context, entries)
}

func feesCommand() *cli.Command {
	return &cli.Command{
		Name:  "fees",
		Usage: "estimate the fee of a transfer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "sending account name or id"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "receiving account name or id"},
			&cli.StringFlag{Name: "amount", Value: "1", Usage: "amount in whole units"},
			&cli.StringFlag{Name: "asset", Value: bitshares.CoreAssetSymbol, Usage: "asset to transfer"},
			&cli.StringFlag{Name: "fee-asset", Value: bitshares.CoreAssetSymbol, Usage: "asset to pay the fee in"},
		},
		Action: func(c *cli.Context) error {
			cl, err := connected(c)
			if err != nil {
				return err
			}

			ids, err := accountIDs(c.Context, cl.db, c.String("from"), c.String("to"))
			if err != nil {
				return err
			}
			asset, err := cl.assets.Resolve(c.Context, c.String("asset"))
			if err != nil {
				return err
			}
			feeAsset, err := cl.assets.Resolve(c.Context, c.String("fee-asset"))
			if err != nil {
				return err
			}
			amount, err := parseAmount(c.String("amount"), asset)
			if err != nil {
				return err
			}

			op, err := bitshares.NewOperation(bitshares.OpTransfer, bitshares.TransferOperation{
				Fee:    bitshares.AssetAmount{AssetID: feeAsset.ID},
				From:   ids[0],
				To:     ids[1],
				Amount: amount,
			})
			if err != nil {
				return err
			}

			fees, err := cl.db.GetRequiredFees(c.Context, []bitshares.Operation{op}, feeAsset.ID)
			if err != nil {
				return err
			}
			if len(fees) != 1 {
				return fmt.Errorf("expected one fee, got %d", len(fees))
			}

			fee := bitshares.AssetAmount{Amount: fees[0].Total(feeAsset.ID), AssetID: feeAsset.ID}
			fmt.Fprintln(cl.out, cl.formatAmount(c.Context, fee))
			return nil
		},
	}
}

// accountIDs maps names to account ids, keeping ids as they are.
func accountIDs(ctx context.Context, db *bitshares.DatabaseAPI, namesOrIDs ...string) ([]string, error) {
	accounts, err := db.GetAccounts(ctx, namesOrIDs)
	if err != nil {
		return nil, err
	}
	if len(accounts) != len(namesOrIDs) {
		return nil, fmt.Errorf("asked for %d accounts, got %d", len(namesOrIDs), len(accounts))
	}

	ids := make([]string, len(namesOrIDs))
	for i, account := range accounts {
		if account == nil {
			return nil, fmt.Errorf("%w: %s", bitshares.ErrAccountNotFound, namesOrIDs[i])
		}
		ids[i] = account.ID
	}
	return ids, nil
}

// parseAmount converts whole units, e.g. "1.5", into the raw amount of asset.
func parseAmount(s string, asset bitshares.AssetInfo) (bitshares.AssetAmount, error) {
	value, err := decimal.NewFromString(s)
	if err != nil {
		return bitshares.AssetAmount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if value.IsNegative() {
		return bitshares.AssetAmount{}, fmt.Errorf("invalid amount %q: must not be negative", s)
	}

	raw := value.Shift(int32(asset.Precision))
	if !raw.Equal(raw.Truncate(0)) {
		return bitshares.AssetAmount{}, fmt.Errorf("invalid amount %q: %s has %d decimals", s, asset.Symbol, asset.Precision)
	}
	return bitshares.AssetAmount{Amount: bitshares.ShareType(raw.IntPart()), AssetID: asset.ID}, nil
}

func memoCommand() *cli.Command {
	keyFlags := []cli.Flag{
		&cli.StringFlag{Name: "password", EnvVars: []string{"BTS_MEMO_PASSWORD"}, Usage: "account password the memo key is derived from"},
		&cli.StringFlag{Name: "wif", EnvVars: []string{"BTS_MEMO_WIF"}, Usage: "memo private key in WIF"},
	}

	return &cli.Command{
		Name:  "memo",
		Usage: "memo keys and decryption",
		Subcommands: []*cli.Command{
			{
				Name:      "decrypt",
				Usage:     "decrypt the memo of a transfer",
				ArgsUsage: "<account> <operation id>",
				Flags:     keyFlags,
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					key, err := memoKey(c, c.Args().Get(0))
					if err != nil {
						return err
					}
					cl, err := connected(c)
					if err != nil {
						return err
					}

					opID := c.Args().Get(1)
					objects, err := cl.db.GetObjects(c.Context, []string{opID})
					if err != nil {
						return err
					}
					if len(objects) != 1 {
						return fmt.Errorf("operation %s not found", opID)
					}
					entry, err := bitshares.DecodeObject[bitshares.OperationHistoryObject](objects[0])
					if err != nil {
						return err
					}
					if entry == nil {
						return fmt.Errorf("operation %s not found", opID)
					}

					transfer, err := entry.Op.Transfer()
					if err != nil {
						return err
					}
					if transfer.Memo == nil {
						return fmt.Errorf("operation %s carries no memo", opID)
					}

					text, err := transfer.Memo.Decrypt(key)
					if err != nil {
						return err
					}
					fmt.Fprintln(cl.out, text)
					return nil
				},
			},
			{
				Name:      "pubkey",
				Usage:     "print the memo public key derived for an account and compare it with the chain",
				ArgsUsage: "<account>",
				Flags: append(keyFlags,
					&cli.BoolFlag{Name: "offline", Usage: "do not compare with the key registered on chain"},
				),
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					name := c.Args().First()
					key, err := memoKey(c, name)
					if err != nil {
						return err
					}

					cl := clientFrom(c)
					pub := key.PublicKey().String()
					fmt.Fprintln(cl.out, pub)
					if c.Bool("offline") {
						return nil
					}

					if err := cl.connect(c.Context); err != nil {
						return err
					}
					account, err := cl.db.GetAccountByName(c.Context, name)
					if err != nil {
						return err
					}
					if account == nil {
						return fmt.Errorf("%w: %s", bitshares.ErrAccountNotFound, name)
					}
					fmt.Fprintf(cl.out, "matches on-chain memo key: %t\n", account.Options.MemoKey == pub)
					return nil
				},
			},
		},
	}
}

func memoKey(c *cli.Context, account string) (*memo.PrivateKey, error) {
	switch {
	case c.String("wif") != "":
		return memo.PrivateKeyFromWIF(c.String("wif"))
	case c.String("password") != "":
		return memo.DeriveMemoKey(account, c.String("password"))
	default:
		return nil, fmt.Errorf("%w: --password or --wif is required", errMissingArgument)
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "print changes to accounts as the node pushes them",
		ArgsUsage: "<name> [name...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Usage: "exit after this many updates; zero watches until interrupted"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cl, err := connected(c)
			if err != nil {
				return err
			}

			updates := make(chan rpc.Notification)
			sub, accounts, err := cl.db.SubscribeFullAccounts(c.Context, c.Args().Slice(), func(ctx context.Context, n rpc.Notification) {
				select {
				case updates <- n:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			for _, account := range accounts {
				fmt.Fprintf(cl.out, "watching %s (%s)\n", account.Account.Account.Name, account.Account.Account.ID)
			}

			limit := c.Int("count")
			for seen := 0; limit <= 0 || seen < limit; {
				select {
				case <-c.Context.Done():
					return nil
				case <-sub.Done():
					return nil
				case n := <-updates:
					for _, obj := range n.Objects {
						fmt.Fprintln(cl.out, describeObject(obj))
						seen++
					}
				}
			}
			return nil
		},
	}
}

// describeObject prints an object id with a short hint of what changed.
// Removed objects arrive as bare ids.
func describeObject(obj json.RawMessage) string {
	var removed string
	if err := json.Unmarshal(obj, &removed); err == nil {
		return removed + " removed"
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return string(obj)
	}

	var id string
	_ = json.Unmarshal(fields["id"], &id)
	if balance, ok := fields["balance"]; ok {
		return fmt.Sprintf("%s balance %s", id, strings.Trim(string(balance), `"`))
	}
	return id + " updated"
}
