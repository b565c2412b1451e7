package bitshares_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalutskii/etil-sterahstib/pkg/bitshares"
	"github.com/kalutskii/etil-sterahstib/pkg/rpc"
)

func TestDatabaseAPI_Params(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mc := NewMockCaller()
	mc.Reply("database", "get_chain_id", `"4018d7844c78f6a6c41c6a552b898022310fc5dec06da467ee7905a8dad512c8"`)
	mc.Reply("database", "get_key_references", `[["1.2.100", "1.2.101"]]`)
	mc.Reply("database", "get_accounts", `[`+aliceAccountJSON+`, null]`)
	mc.Reply("database", "get_named_account_balances", `[{"amount": 5, "asset_id": "1.3.0"}]`)
	mc.Reply("database", "lookup_asset_symbols", `[{"id": "1.3.0", "symbol": "BTS", "precision": 5, "issuer": "1.2.3", "dynamic_asset_data_id": "2.3.0"}, null]`)

	db := bitshares.NewDatabaseAPI(mc)

	chainID, err := db.GetChainID(ctx)
	require.NoError(t, err)
	assert.Len(t, chainID, 64)
	assert.JSONEq(t, `[]`, mc.Calls("get_chain_id")[0].Params)

	refs, err := db.GetKeyReferences(ctx, []string{"BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1.2.100", "1.2.101"}}, refs)

	accounts, err := db.GetAccounts(ctx, []string{"alice", "nobody"})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Name)
	assert.Nil(t, accounts[1])
	assert.JSONEq(t, `[["alice", "nobody"]]`, mc.Calls("get_accounts")[0].Params)

	balances, err := db.GetNamedAccountBalances(ctx, "alice", "1.3.0")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.JSONEq(t, `["alice", ["1.3.0"]]`, mc.Calls("get_named_account_balances")[0].Params)

	assets, err := db.LookupAssetSymbols(ctx, nil)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, uint8(5), assets[0].Precision)
	assert.Nil(t, assets[1])
	assert.JSONEq(t, `[[]]`, mc.Calls("lookup_asset_symbols")[0].Params)
}

func TestDatabaseAPI_GetAccountByName_Null(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_account_by_name", `null`)

	account, err := bitshares.NewDatabaseAPI(mc).GetAccountByName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestDatabaseAPI_GetObjects(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_objects", `[`+aliceAccountJSON+`, null, {"id": "2.5.300", "owner": "1.2.100", "asset_type": "1.3.0", "balance": 7}]`)

	objects, err := bitshares.NewDatabaseAPI(mc).GetObjects(context.Background(), []string{"1.2.100", "1.2.999", "2.5.300"})
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.Nil(t, objects[1])

	account, err := bitshares.DecodeObject[bitshares.AccountObject](objects[0])
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Name)
	assert.Equal(t, "BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw", account.Options.MemoKey)
	require.Len(t, account.Active.AccountAuths, 1)
	assert.Equal(t, bitshares.Weighted{Key: "1.2.5", Weight: 1}, account.Active.AccountAuths[0])
	require.NotNil(t, account.CreationTime)
	assert.True(t, time.Date(2015, 10, 13, 14, 12, 24, 0, time.UTC).Equal(account.CreationTime.Time))

	balance, err := bitshares.DecodeObject[bitshares.AccountBalanceObject](objects[2])
	require.NoError(t, err)
	assert.Equal(t, bitshares.ShareType(7), balance.Balance)

	missing, err := bitshares.DecodeObject[bitshares.AccountObject](objects[1])
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDatabaseAPI_GetDynamicGlobalProperties(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_dynamic_global_properties", `{
		"id": "2.1.0",
		"head_block_number": 71234567,
		"head_block_id": "043ef1079c6cbd1a4bf7b1d7f5c29b4d5a1b2c3d",
		"time": "2024-05-01T12:30:03",
		"current_witness": "1.6.41",
		"next_maintenance_time": "2024-05-01T13:00:00",
		"last_budget_time": "2024-05-01T12:00:00",
		"witness_budget": 12300000,
		"accounts_registered_this_interval": 4,
		"recent_slots_filled": "340282366920938463463374607431768211455",
		"dynamic_flags": 0,
		"last_irreversible_block_num": 71234550
	}`)

	props, err := bitshares.NewDatabaseAPI(mc).GetDynamicGlobalProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(71234567), props.HeadBlockNumber)
	assert.Equal(t, uint32(71234550), props.LastIrreversibleBlockNum)
	assert.Equal(t, "2024-05-01T12:30:03", props.Time.String())
}

func TestDatabaseAPI_DecodeError(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name   string
		result string
	}{
		{name: "wrong shape", result: `{"unexpected": true}`},
		{name: "invalid object id", result: `[{"amount": 1, "asset_id": "BTS"}]`},
		{name: "missing asset id", result: `[{"amount": 1}]`},
		{name: "bad amount", result: `[{"amount": "1.5", "asset_id": "1.3.0"}]`},
	}

	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			mc := NewMockCaller()
			mc.Reply("database", "get_account_balances", tc.result)

			_, err := bitshares.NewDatabaseAPI(mc).GetAccountBalances(context.Background(), "alice")

			var decodeErr *bitshares.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, "database", decodeErr.Namespace)
			assert.Equal(t, "get_account_balances", decodeErr.Method)
		})
	}
}

func TestDatabaseAPI_GetRequiredFees(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_required_fees", `[
		{"amount": 86869, "asset_id": "1.3.0"},
		[{"amount": 20000, "asset_id": "1.3.0"}, [{"amount": 86869, "asset_id": "1.3.0"}]]
	]`)

	transfer, err := bitshares.NewOperation(bitshares.OpTransfer, bitshares.TransferOperation{
		Fee:    bitshares.AssetAmount{AssetID: "1.3.0"},
		From:   "1.2.100",
		To:     "1.2.200",
		Amount: bitshares.AssetAmount{Amount: 150000, AssetID: "1.3.0"},
	})
	require.NoError(t, err)

	fees, err := bitshares.NewDatabaseAPI(mc).GetRequiredFees(context.Background(), []bitshares.Operation{transfer, {Type: 22}}, "BTS")
	require.NoError(t, err)
	require.Len(t, fees, 2)

	require.NotNil(t, fees[0].Amount)
	assert.Equal(t, bitshares.ShareType(86869), fees[0].Amount.Amount)
	assert.Equal(t, bitshares.ShareType(86869), fees[0].Total("1.3.0"))

	assert.Nil(t, fees[1].Amount)
	assert.Len(t, fees[1].Flatten(), 2)
	assert.Equal(t, bitshares.ShareType(106869), fees[1].Total("1.3.0"))

	calls := mc.Calls("get_required_fees")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `[[
		[0, {"fee": {"amount": 0, "asset_id": "1.3.0"}, "from": "1.2.100", "to": "1.2.200", "amount": {"amount": 150000, "asset_id": "1.3.0"}}],
		[22, {}]
	], "BTS"]`, calls[0].Params)
}

func TestDatabaseAPI_SubscribeObjects(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_objects", `[{"id": "2.5.300", "owner": "1.2.100", "asset_type": "1.3.0", "balance": 7}]`)

	received := make(chan rpc.Notification, 1)
	sub, objects, err := bitshares.NewDatabaseAPI(mc).SubscribeObjects(context.Background(), []string{"2.5.300"},
		func(_ context.Context, n rpc.Notification) { received <- n })
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	require.Len(t, objects, 1)
	assert.JSONEq(t, `[["2.5.300"]]`, mc.Calls("get_objects")[0].Params)

	mc.Notify(t, `[{"id": "2.5.300", "owner": "1.2.100", "asset_type": "1.3.0", "balance": 9}]`)

	select {
	case n := <-received:
		require.Len(t, n.Objects, 1)
		balance, err := bitshares.DecodeObject[bitshares.AccountBalanceObject](n.Objects[0])
		require.NoError(t, err)
		assert.Equal(t, bitshares.ShareType(9), balance.Balance)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
}

func TestDatabaseAPI_SubscribeFullAccounts(t *testing.T) {
	t.Parallel()

	mc := NewMockCaller()
	mc.Reply("database", "get_full_accounts", `[["alice", `+aliceFullAccountJSON+`]]`)

	sub, accounts, err := bitshares.NewDatabaseAPI(mc).SubscribeFullAccounts(context.Background(), []string{"alice"},
		func(context.Context, rpc.Notification) {})
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Key)
	assert.JSONEq(t, `[["alice"], true]`, mc.Calls("get_full_accounts")[0].Params)
}

func TestDatabaseAPI_SubscribeUnsupported(t *testing.T) {
	t.Parallel()

	db := bitshares.NewDatabaseAPI(callerOnly{c: NewMockCaller()})
	_, _, err := db.SubscribeObjects(context.Background(), []string{"1.2.100"}, func(context.Context, rpc.Notification) {})
	require.ErrorIs(t, err, bitshares.ErrSubscribeUnsupported)
}
