package wow

import "context"

// WalletRPC is the wownero-wallet-rpc and wownerod surface the
// listener, prompt handler and probes depend on. The wallet is
// treated as ground truth; nothing here validates chain data.
type WalletRPC interface {
	// get_transfers (incoming only) for one account, filtered to sub-addresses.
	GetTransfers(ctx context.Context, account uint32, subaddrIndices []uint32) ([]WalletTransfer, error)
	// get_transfer_by_txid: one transfer plus every destination it paid.
	GetTransferByTxID(ctx context.Context, txid string) (TransferByTxID, error)
	// get_fee_estimate: fee in piconero per kB.
	GetFeeEstimate(ctx context.Context) (int64, error)
	// create_address: reserve a new sub-address in account.
	CreateAddress(ctx context.Context, account uint32, label string) (CreatedAddress, error)
	GetAccounts(ctx context.Context) (AccountsSummary, error)
	CreateAccount(ctx context.Context, label string) (WalletAccount, error)
	OpenWallet(ctx context.Context, filename string, password string) error
	// get_height: wallet health probe.
	GetHeight(ctx context.Context) (int64, error)
	// get_info: daemon health probe.
	GetInfo(ctx context.Context) (DaemonInfo, error)
	// get_last_block_header: chain tip for the TipChaser.
	GetLastBlockHeader(ctx context.Context) (BlockHeader, error)
}

type SubaddrIndex struct {
	Major uint32 `json:"major"` // account
	Minor uint32 `json:"minor"` // sub-address
}

// WalletTransfer is one transfer as reported by the wallet.
type WalletTransfer struct {
	Address         string       `json:"address"`
	Amount          int64        `json:"amount"` // piconero
	Confirmations   int64        `json:"confirmations"`
	Height          int64        `json:"height"`
	Fee             int64        `json:"fee"`
	TxID            string       `json:"txid"`
	Type            string       `json:"type"`
	SubaddrIndex    SubaddrIndex `json:"subaddr_index"`
	Timestamp       int64        `json:"timestamp"`
	UnlockTime      int64        `json:"unlock_time"`
	SuggestedConfs  int64        `json:"suggested_confirmations_threshold"`
	DoubleSpendSeen bool         `json:"double_spend_seen"`
	Locked          bool         `json:"locked"`
}

// LockTime is the transfer's unlock_time, compared directly against
// its confirmation count by the confirmation policy.
func (t WalletTransfer) LockTime() int64 {
	return t.UnlockTime
}

type TransferByTxID struct {
	Transfer  WalletTransfer   `json:"transfer"`
	Transfers []WalletTransfer `json:"transfers"`
}

type CreatedAddress struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"address_index"`
}

type WalletAccount struct {
	AccountIndex    uint32 `json:"account_index"`
	Address         string `json:"base_address"`
	Balance         int64  `json:"balance"`
	UnlockedBalance int64  `json:"unlocked_balance"`
	Label           string `json:"label"`
	Tag             string `json:"tag"`
}

type AccountsSummary struct {
	SubaddressAccounts   []WalletAccount `json:"subaddress_accounts"`
	TotalBalance         int64           `json:"total_balance"`
	TotalUnlockedBalance int64           `json:"total_unlocked_balance"`
}

type DaemonInfo struct {
	Height       int64  `json:"height"`
	TargetHeight int64  `json:"target_height"`
	Synchronized bool   `json:"synchronized"`
	Status       string `json:"status"`
}

type BlockHeader struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
}
