package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
)

func newTable(out io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row(header))
	t.AppendSeparator()
	return t
}

// formatAmount renders an amount with its symbol. Without a session only the
// static assets and the core asset are known; others are printed raw.
func (c *client) formatAmount(ctx context.Context, amount bitshares.AssetAmount) string {
	if c.assets != nil {
		if s, err := c.assets.Format(ctx, amount); err == nil {
			return s
		}
	}

	info, ok := c.cfg.assets.Lookup(amount.AssetID)
	if !ok && amount.AssetID == bitshares.CoreAssetID {
		info, ok = bitshares.CoreAsset, true
	}
	if !ok {
		return fmt.Sprintf("%d %s", amount.Amount, amount.AssetID)
	}
	return amount.Decimal(info.Precision).StringFixed(int32(info.Precision)) + " " + info.Symbol
}

// describeOperation is the one-line summary shown in history listings.
func (c *client) describeOperation(ctx context.Context, op any) string {
	switch v := op.(type) {
	case *bitshares.TransferOperation:
		s := fmt.Sprintf("%s -> %s %s", v.From, v.To, c.formatAmount(ctx, v.Amount))
		if v.Memo != nil {
			s += " (memo)"
		}
		return s
	case *bitshares.LimitOrderCreateOperation:
		return fmt.Sprintf("%s sells %s for %s", v.Seller, c.formatAmount(ctx, v.AmountToSell), c.formatAmount(ctx, v.MinToReceive))
	case *bitshares.LimitOrderCancelOperation:
		return fmt.Sprintf("%s cancels %s", v.FeePayingAccount, v.Order)
	case *bitshares.CallOrderUpdateOperation:
		return fmt.Sprintf("%s collateral %s debt %s", v.FundingAccount, c.formatAmount(ctx, v.DeltaCollateral), c.formatAmount(ctx, v.DeltaDebt))
	case *bitshares.FillOrderOperation:
		return fmt.Sprintf("%s paid %s received %s", v.AccountID, c.formatAmount(ctx, v.Pays), c.formatAmount(ctx, v.Receives))
	default:
		return ""
	}
}

func (c *client) renderHistory(ctx context.Context, entries []bitshares.OperationHistoryObject) error {
	t := newTable(c.out, "ID", "Block", "Time", "Type", "Details")
	for _, entry := range entries {
		parsed, err := entry.Parse()
		if err != nil {
			return err
		}

		blockTime := ""
		if parsed.Timestamp != nil {
			blockTime = parsed.Timestamp.String()
		}
		t.AppendRow(table.Row{
			parsed.ID,
			parsed.BlockNum,
			blockTime,
			bitshares.OperationName(parsed.Type),
			c.describeOperation(ctx, parsed.Operation),
		})
	}
	t.Render()
	return nil
}
