package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// interface guard ensures WowneroRPC implements wow.WalletRPC
var _ wow.WalletRPC = &WowneroRPC{}

// NewWowneroRPC returns a wow.WalletRPC implementor that talks JSON-RPC to
// wownerod (daemon) and wownero-wallet-rpc (wallet).
func NewWowneroRPC(node wow.NodeConfig) (*WowneroRPC, error) {
	if node.DaemonURI == "" || node.WalletDaemonURI == "" {
		return nil, wow.NewErr(wow.MalformedConfig, "wownero rpc: daemon and wallet uris are required")
	}
	return &WowneroRPC{
		daemon: endpoint{strings.TrimRight(node.DaemonURI, "/") + "/json_rpc", node.Username, node.Password},
		wallet: endpoint{strings.TrimRight(node.WalletDaemonURI, "/") + "/json_rpc", node.Username, node.Password},
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// wallet-rpc WALLET_RPC_ERROR_CODE_WRONG_TXID
const walletErrWrongTxID = -8

type endpoint struct {
	url  string
	user string
	pass string
}

type WowneroRPC struct {
	daemon endpoint
	wallet endpoint
	client *http.Client
	id     uint64
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     string           `json:"id"`
	Result *json.RawMessage `json:"result"`
	Error  *rpcError        `json:"error"`
}

func (l *WowneroRPC) request(ctx context.Context, ep endpoint, method string, params any, result any) error {
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      strconv.FormatUint(atomic.AddUint64(&l.id, 1), 10), // each request should use a unique ID
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: marshal request: %v", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", ep.url, bytes.NewBuffer(payload))
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: request: %v", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.user != "" {
		req.SetBasicAuth(ep.user, ep.pass)
	}
	res, err := l.client.Do(req)
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: transport: %v", method, err)
	}
	// we MUST read all of res.Body and call res.Close,
	// otherwise the underlying connection cannot be re-used.
	defer res.Body.Close()
	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: read response: %v", method, err)
	}
	if res.StatusCode != http.StatusOK {
		return wow.NewErr(wow.RPCFailure, "%s: status code: %s", method, res.Status)
	}
	var rpcres rpcResponse
	err = json.Unmarshal(resBytes, &rpcres)
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: unmarshal response: %v", method, err)
	}
	if rpcres.ID != body.ID {
		return wow.NewErr(wow.RPCFailure, "%s: wrong ID returned: %v vs %v", method, rpcres.ID, body.ID)
	}
	if rpcres.Error != nil {
		if rpcres.Error.Code == walletErrWrongTxID {
			// the wallet has no record of this txid: not ours.
			return wow.NewErr(wow.NotFound, "%s: %s", method, rpcres.Error.Message)
		}
		return wow.NewErr(wow.RPCFailure, "%s: error returned: %d %s", method, rpcres.Error.Code, rpcres.Error.Message)
	}
	if rpcres.Result == nil {
		return wow.NewErr(wow.RPCFailure, "%s: missing result", method)
	}
	if result == nil {
		return nil
	}
	err = json.Unmarshal(*rpcres.Result, result)
	if err != nil {
		return wow.NewErr(wow.RPCFailure, "%s: unmarshal result: %v | %v", method, err, string(*rpcres.Result))
	}
	return nil
}

func (l *WowneroRPC) GetTransfers(ctx context.Context, account uint32, subaddrIndices []uint32) ([]wow.WalletTransfer, error) {
	params := map[string]any{
		"in":              true,
		"account_index":   account,
		"subaddr_indices": subaddrIndices,
	}
	var res struct {
		In []wow.WalletTransfer `json:"in"`
	}
	err := l.request(ctx, l.wallet, "get_transfers", params, &res)
	return res.In, err
}

func (l *WowneroRPC) GetTransferByTxID(ctx context.Context, txid string) (res wow.TransferByTxID, err error) {
	err = l.request(ctx, l.wallet, "get_transfer_by_txid", map[string]any{"txid": txid}, &res)
	if err == nil && len(res.Transfers) == 0 {
		// older wallets only return the single transfer
		res.Transfers = []wow.WalletTransfer{res.Transfer}
	}
	return
}

func (l *WowneroRPC) GetFeeEstimate(ctx context.Context) (int64, error) {
	var res struct {
		Fee int64 `json:"fee"`
	}
	err := l.request(ctx, l.daemon, "get_fee_estimate", map[string]any{}, &res)
	return res.Fee, err
}

func (l *WowneroRPC) CreateAddress(ctx context.Context, account uint32, label string) (res wow.CreatedAddress, err error) {
	err = l.request(ctx, l.wallet, "create_address", map[string]any{"account_index": account, "label": label}, &res)
	if err == nil && res.Address == "" {
		err = wow.NewErr(wow.RPCFailure, "create_address: empty address returned")
	}
	return
}

func (l *WowneroRPC) GetAccounts(ctx context.Context) (res wow.AccountsSummary, err error) {
	err = l.request(ctx, l.wallet, "get_accounts", map[string]any{}, &res)
	return
}

func (l *WowneroRPC) CreateAccount(ctx context.Context, label string) (wow.WalletAccount, error) {
	var res struct {
		AccountIndex uint32 `json:"account_index"`
		Address      string `json:"address"`
	}
	err := l.request(ctx, l.wallet, "create_account", map[string]any{"label": label}, &res)
	return wow.WalletAccount{AccountIndex: res.AccountIndex, Address: res.Address, Label: label}, err
}

func (l *WowneroRPC) OpenWallet(ctx context.Context, filename string, password string) error {
	params := map[string]any{"filename": filename, "password": password}
	return l.request(ctx, l.wallet, "open_wallet", params, nil)
}

func (l *WowneroRPC) GetHeight(ctx context.Context) (int64, error) {
	var res struct {
		Height int64 `json:"height"`
	}
	err := l.request(ctx, l.wallet, "get_height", map[string]any{}, &res)
	return res.Height, err
}

func (l *WowneroRPC) GetInfo(ctx context.Context) (res wow.DaemonInfo, err error) {
	err = l.request(ctx, l.daemon, "get_info", map[string]any{}, &res)
	if err == nil && res.Status != "" && res.Status != "OK" {
		err = wow.NewErr(wow.RPCFailure, "get_info: daemon status %s", res.Status)
	}
	return
}

func (l *WowneroRPC) GetLastBlockHeader(ctx context.Context) (wow.BlockHeader, error) {
	var res struct {
		BlockHeader wow.BlockHeader `json:"block_header"`
	}
	err := l.request(ctx, l.daemon, "get_last_block_header", map[string]any{}, &res)
	if err == nil && res.BlockHeader.Hash == "" {
		return wow.BlockHeader{}, wow.NewErr(wow.RPCFailure, "get_last_block_header: missing hash")
	}
	return res.BlockHeader, err
}

func (l *WowneroRPC) String() string {
	return fmt.Sprintf("WowneroRPC(daemon=%s wallet=%s)", l.daemon.url, l.wallet.url)
}
