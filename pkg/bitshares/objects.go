package bitshares

import "encoding/json"

// AccountObject is an account (1.2.x).
type AccountObject struct {
	ID                            string          `json:"id" validate:"required,objectid"`
	MembershipExpirationDate      TimePointSec    `json:"membership_expiration_date"`
	Registrar                     string          `json:"registrar"`
	Referrer                      string          `json:"referrer"`
	LifetimeReferrer              string          `json:"lifetime_referrer"`
	NetworkFeePercentage          uint16          `json:"network_fee_percentage"`
	LifetimeReferrerFeePercentage uint16          `json:"lifetime_referrer_fee_percentage"`
	ReferrerRewardsPercentage     uint16          `json:"referrer_rewards_percentage"`
	Name                          string          `json:"name" validate:"required"`
	Owner                         Authority       `json:"owner"`
	Active                        Authority       `json:"active"`
	Options                       AccountOptions  `json:"options"`
	Statistics                    string          `json:"statistics"`
	WhitelistingAccounts          []string        `json:"whitelisting_accounts"`
	WhitelistedAccounts           []string        `json:"whitelisted_accounts"`
	BlacklistedAccounts           []string        `json:"blacklisted_accounts"`
	BlacklistingAccounts          []string        `json:"blacklisting_accounts"`
	CashbackVB                    *string         `json:"cashback_vb,omitempty"`
	OwnerSpecialAuthority         json.RawMessage `json:"owner_special_authority,omitempty"`
	ActiveSpecialAuthority        json.RawMessage `json:"active_special_authority,omitempty"`
	TopNControlFlags              uint8           `json:"top_n_control_flags,omitempty"`
	AllowedAssets                 []string        `json:"allowed_assets,omitempty"`
	NumCommitteeVoted             uint16          `json:"num_committee_voted,omitempty"`
	CreationBlockNum              uint32          `json:"creation_block_num,omitempty"`
	CreationTime                  *TimePointSec   `json:"creation_time,omitempty"`
}

// AccountStatisticsObject is the statistics object (2.6.x) of an account.
type AccountStatisticsObject struct {
	ID                 string        `json:"id" validate:"required,objectid"`
	Owner              string        `json:"owner" validate:"required,objectid"`
	Name               string        `json:"name"`
	MostRecentOp       string        `json:"most_recent_op"`
	TotalOps           uint64        `json:"total_ops"`
	RemovedOps         uint64        `json:"removed_ops"`
	TotalCoreInOrders  ShareType     `json:"total_core_in_orders"`
	CoreInBalance      ShareType     `json:"core_in_balance"`
	HasCashbackVB      bool          `json:"has_cashback_vb"`
	IsVoting           bool          `json:"is_voting"`
	LifetimeFeesPaid   ShareType     `json:"lifetime_fees_paid"`
	PendingFees        ShareType     `json:"pending_fees"`
	PendingVestedFees  ShareType     `json:"pending_vested_fees"`
	TotalCoreInactive  ShareType     `json:"total_core_inactive,omitempty"`
	TotalCorePOB       ShareType     `json:"total_core_pob,omitempty"`
	TotalCorePOL       ShareType     `json:"total_core_pol,omitempty"`
	TotalPOBValue      ShareType     `json:"total_pob_value,omitempty"`
	TotalPOLValue      ShareType     `json:"total_pol_value,omitempty"`
	LastVoteTime       *TimePointSec `json:"last_vote_time,omitempty"`
	VotingPowerAll     uint64        `json:"vp_all,omitempty"`
	VotingPowerActive  uint64        `json:"vp_active,omitempty"`
	VotingPowerComm    uint64        `json:"vp_committee,omitempty"`
	VotingPowerWitness uint64        `json:"vp_witness,omitempty"`
	VotingPowerWorker  uint64        `json:"vp_worker,omitempty"`
	VoteTallyTime      *TimePointSec `json:"vote_tally_time,omitempty"`
}

// AccountBalanceObject is one balance row of an account.
type AccountBalanceObject struct {
	ID              string    `json:"id" validate:"required,objectid"`
	Owner           string    `json:"owner" validate:"required,objectid"`
	AssetType       string    `json:"asset_type" validate:"required,objectid"`
	Balance         ShareType `json:"balance"`
	MaintenanceFlag bool      `json:"maintenance_flag,omitempty"`
}

// DynamicGlobalPropertyObject is the chain head state (2.1.0).
type DynamicGlobalPropertyObject struct {
	ID                             string       `json:"id" validate:"required,objectid"`
	HeadBlockNumber                uint32       `json:"head_block_number"`
	HeadBlockID                    string       `json:"head_block_id"`
	Time                           TimePointSec `json:"time"`
	CurrentWitness                 string       `json:"current_witness"`
	CurrentTransactionInBlock      uint32       `json:"current_transaction_in_block"`
	CurrentVirtualTime             string       `json:"current_virtual_time"`
	NextMaintenanceTime            TimePointSec `json:"next_maintenance_time"`
	LastBudgetTime                 TimePointSec `json:"last_budget_time"`
	WitnessBudget                  ShareType    `json:"witness_budget"`
	LastIrreversibleBlockNum       uint32       `json:"last_irreversible_block_num"`
	RecentSlotsFilled              string       `json:"recent_slots_filled"`
	DynamicFlags                   uint32       `json:"dynamic_flags,omitempty"`
	AccountsRegisteredThisInterval uint32       `json:"accounts_registered_this_interval,omitempty"`
}

// VestingBalanceObject (1.13.x).
type VestingBalanceObject struct {
	ID      string          `json:"id" validate:"required,objectid"`
	Owner   string          `json:"owner"`
	Balance AssetAmount     `json:"balance"`
	Policy  json.RawMessage `json:"policy,omitempty"`
}

// LimitOrderObject (1.7.x).
type LimitOrderObject struct {
	ID          string       `json:"id" validate:"required,objectid"`
	Seller      string       `json:"seller"`
	ForSale     ShareType    `json:"for_sale"`
	SellPrice   Price        `json:"sell_price"`
	Expiration  TimePointSec `json:"expiration"`
	DeferredFee ShareType    `json:"deferred_fee,omitempty"`
}

// CallOrderObject (1.8.x).
type CallOrderObject struct {
	ID         string    `json:"id" validate:"required,objectid"`
	Borrower   string    `json:"borrower"`
	Collateral ShareType `json:"collateral"`
	Debt       ShareType `json:"debt"`
	CallPrice  Price     `json:"call_price"`
}

// ForceSettlementObject (1.4.x).
type ForceSettlementObject struct {
	ID             string       `json:"id" validate:"required,objectid"`
	Owner          string       `json:"owner"`
	Balance        AssetAmount  `json:"balance"`
	SettlementDate TimePointSec `json:"settlement_date"`
}

// ProposalObject (1.10.x).
type ProposalObject struct {
	ID                       string          `json:"id" validate:"required,objectid"`
	ExpirationTime           TimePointSec    `json:"expiration_time"`
	ReviewPeriodTime         *TimePointSec   `json:"review_period_time,omitempty"`
	ProposedTransaction      json.RawMessage `json:"proposed_transaction"`
	RequiredActiveApprovals  []string        `json:"required_active_approvals"`
	RequiredOwnerApprovals   []string        `json:"required_owner_approvals"`
	AvailableActiveApprovals []string        `json:"available_active_approvals"`
	AvailableOwnerApprovals  []string        `json:"available_owner_approvals"`
	AvailableKeyApprovals    []string        `json:"available_key_approvals"`
}

// WithdrawPermissionObject (1.12.x).
type WithdrawPermissionObject struct {
	ID                  string       `json:"id" validate:"required,objectid"`
	WithdrawFromAccount string       `json:"withdraw_from_account"`
	AuthorizedAccount   string       `json:"authorized_account"`
	WithdrawalLimit     AssetAmount  `json:"withdrawal_limit"`
	WithdrawalPeriodSec uint32       `json:"withdrawal_period_sec"`
	PeriodStartTime     TimePointSec `json:"period_start_time"`
	Expiration          TimePointSec `json:"expiration"`
	ClaimedThisPeriod   AssetAmount  `json:"claimed_this_period"`
}

// AssetObject (1.3.x), reduced to what amount formatting needs.
type AssetObject struct {
	ID                 string          `json:"id" validate:"required,objectid"`
	Symbol             string          `json:"symbol" validate:"required"`
	Precision          uint8           `json:"precision" validate:"lte=12"`
	Issuer             string          `json:"issuer"`
	DynamicAssetDataID string          `json:"dynamic_asset_data_id"`
	Options            json.RawMessage `json:"options,omitempty"`
}

// MoreDataAvailable flags truncated collections inside a FullAccount.
type MoreDataAvailable struct {
	Balances        bool `json:"balances"`
	VestingBalances bool `json:"vesting_balances"`
	LimitOrders     bool `json:"limit_orders"`
	CallOrders      bool `json:"call_orders"`
	SettleOrders    bool `json:"settle_orders"`
	Proposals       bool `json:"proposals"`
	Assets          bool `json:"assets"`
	WithdrawsFrom   bool `json:"withdraws_from"`
	WithdrawsTo     bool `json:"withdraws_to"`
	HTLCsFrom       bool `json:"htlcs_from"`
	HTLCsTo         bool `json:"htlcs_to"`
}

// FullAccount is one entry of get_full_accounts.
type FullAccount struct {
	Account              AccountObject              `json:"account"`
	Statistics           AccountStatisticsObject    `json:"statistics"`
	RegistrarName        string                     `json:"registrar_name"`
	ReferrerName         string                     `json:"referrer_name"`
	LifetimeReferrerName string                     `json:"lifetime_referrer_name"`
	Votes                []json.RawMessage          `json:"votes"`
	CashbackBalance      *VestingBalanceObject      `json:"cashback_balance,omitempty"`
	Balances             []AccountBalanceObject     `json:"balances" validate:"dive"`
	VestingBalances      []VestingBalanceObject     `json:"vesting_balances" validate:"dive"`
	LimitOrders          []LimitOrderObject         `json:"limit_orders" validate:"dive"`
	CallOrders           []CallOrderObject          `json:"call_orders" validate:"dive"`
	SettleOrders         []ForceSettlementObject    `json:"settle_orders" validate:"dive"`
	Proposals            []ProposalObject           `json:"proposals" validate:"dive"`
	Assets               []string                   `json:"assets"`
	Withdraws            []WithdrawPermissionObject `json:"withdraws,omitempty" validate:"dive"`
	WithdrawsFrom        []json.RawMessage          `json:"withdraws_from,omitempty"`
	WithdrawsTo          []json.RawMessage          `json:"withdraws_to,omitempty"`
	HTLCsFrom            []json.RawMessage          `json:"htlcs_from,omitempty"`
	HTLCsTo              []json.RawMessage          `json:"htlcs_to,omitempty"`
	MoreDataAvailable    *MoreDataAvailable         `json:"more_data_available,omitempty"`
}

// Balance returns the raw balance of assetID held by the account, or zero.
func (fa FullAccount) Balance(assetID string) ShareType {
	for _, b := range fa.Balances {
		if b.AssetType == assetID {
			return b.Balance
		}
	}
	return 0
}

// NamedFullAccount is the `[nameOrID, FullAccount]` pair returned by
// get_full_accounts.
type NamedFullAccount struct {
	Key     string
	Account FullAccount
}

func (n *NamedFullAccount) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return errTupleLen("full account", 2, len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &n.Key); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &n.Account)
}
