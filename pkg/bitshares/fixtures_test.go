package bitshares_test

const aliceAccountJSON = `{
	"id": "1.2.100",
	"membership_expiration_date": "1970-01-01T00:00:00",
	"registrar": "1.2.17",
	"referrer": "1.2.17",
	"lifetime_referrer": "1.2.17",
	"network_fee_percentage": 2000,
	"lifetime_referrer_fee_percentage": 3000,
	"referrer_rewards_percentage": 0,
	"name": "alice",
	"owner": {"weight_threshold": 1, "account_auths": [], "key_auths": [["BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw", 1]], "address_auths": []},
	"active": {"weight_threshold": 1, "account_auths": [["1.2.5", 1]], "key_auths": [["BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw", 1]], "address_auths": []},
	"options": {
		"memo_key": "BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw",
		"voting_account": "1.2.5",
		"num_witness": 0,
		"num_committee": 0,
		"votes": ["1:5", "0:12"],
		"extensions": []
	},
	"statistics": "2.6.100",
	"whitelisting_accounts": [],
	"blacklisting_accounts": [],
	"whitelisted_accounts": [],
	"blacklisted_accounts": [],
	"owner_special_authority": [0, {}],
	"active_special_authority": [0, {}],
	"top_n_control_flags": 0,
	"creation_block_num": 1024,
	"creation_time": "2015-10-13T14:12:24"
}`

const aliceStatisticsJSON = `{
	"id": "2.6.100",
	"owner": "1.2.100",
	"name": "alice",
	"most_recent_op": "2.9.55",
	"total_ops": 12,
	"removed_ops": 0,
	"total_core_in_orders": 0,
	"core_in_balance": "123456789",
	"has_cashback_vb": false,
	"is_voting": true,
	"lifetime_fees_paid": 250000,
	"pending_fees": 0,
	"pending_vested_fees": 0
}`

const aliceFullAccountJSON = `{
	"account": ` + aliceAccountJSON + `,
	"statistics": ` + aliceStatisticsJSON + `,
	"registrar_name": "registrar",
	"referrer_name": "registrar",
	"lifetime_referrer_name": "registrar",
	"votes": [],
	"balances": [
		{"id": "2.5.300", "owner": "1.2.100", "asset_type": "1.3.0", "balance": "123456789", "maintenance_flag": false},
		{"id": "2.5.301", "owner": "1.2.100", "asset_type": "1.3.121", "balance": 1500}
	],
	"vesting_balances": [],
	"limit_orders": [
		{"id": "1.7.9", "expiration": "2030-01-01T00:00:00", "seller": "1.2.100", "for_sale": 1000,
		 "sell_price": {"base": {"amount": 1000, "asset_id": "1.3.0"}, "quote": {"amount": 10, "asset_id": "1.3.121"}}, "deferred_fee": 0}
	],
	"call_orders": [],
	"settle_orders": [],
	"proposals": [],
	"assets": [],
	"withdraws_from": [],
	"withdraws_to": [],
	"htlcs_from": [],
	"htlcs_to": [],
	"more_data_available": {"balances": false, "vesting_balances": false, "limit_orders": false, "call_orders": false,
		"settle_orders": false, "proposals": false, "assets": false, "withdraws_from": false, "withdraws_to": false,
		"htlcs_from": false, "htlcs_to": false}
}`

// transferHistoryJSON holds one transfer from alice to bob with a memo
// encrypted between their memo keys.
const transferHistoryJSON = `[{
	"id": "1.11.5001",
	"op": [0, {
		"fee": {"amount": 86869, "asset_id": "1.3.0"},
		"from": "1.2.100",
		"to": "1.2.200",
		"amount": {"amount": 150000, "asset_id": "1.3.0"},
		"memo": {
			"from": "BTS7P5uSU4szYzWc5KmxATECNvtCUjvEG2LmXTcP9WKh6Svxa2Mzw",
			"to": "BTS7YvyryQX2RWkdNkMNan5DBq6zAUWa3GSKxTDWensKbiEC6J1Zw",
			"nonce": "16066947577223184451",
			"message": "9afaed784af6008271cbc09d32ddd28d2edf90792cfb6591663288ad16e7b904"
		},
		"extensions": []
	}],
	"result": [0, {}],
	"block_num": 71234567,
	"trx_in_block": 3,
	"op_in_trx": 0,
	"virtual_op": 0,
	"block_time": "2024-05-01T12:30:00"
}]`

const assetsYAML = `assets:
  - id: "1.3.121"
    symbol: USD
    name: bitUSD
    precision: 4
  - id: "1.3.113"
    symbol: CNY
    precision: 4
    disabled: true
`
