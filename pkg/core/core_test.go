package core

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

// fakeNode answers JSON-RPC calls from a method -> result table.
func fakeNode(t *testing.T, results map[string]string, errors map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json_rpc" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     string          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %s", body)
		}
		if e, ok := errors[req.Method]; ok {
			w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","error":` + e + `}`))
			return
		}
		res, ok := results[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			res = `{}`
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":"` + req.ID + `","result":` + res + `}`))
	}))
}

func newRPC(t *testing.T, srv *httptest.Server) *WowneroRPC {
	rpc, err := NewWowneroRPC(wow.NodeConfig{DaemonURI: srv.URL, WalletDaemonURI: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewWowneroRPC: %v", err)
	}
	return rpc
}

func TestGetTransfers(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"get_transfers": `{"in":[{"address":"Wa","amount":123456789000,"confirmations":3,"height":100,
			"txid":"tx1","type":"in","subaddr_index":{"major":0,"minor":4},"unlock_time":10}]}`,
	}, nil)
	defer srv.Close()

	transfers, err := newRPC(t, srv).GetTransfers(context.Background(), 0, []uint32{4})
	if err != nil {
		t.Fatalf("GetTransfers: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	tr := transfers[0]
	if tr.Amount != 123456789000 || tr.SubaddrIndex.Minor != 4 || tr.TxID != "tx1" || tr.LockTime() != 10 {
		t.Errorf("unexpected transfer %+v", tr)
	}
}

func TestGetTransferByTxID(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"get_transfer_by_txid": `{"transfer":{"txid":"tx1","amount":5},"transfers":[{"address":"Wa","amount":2},{"address":"Wb","amount":3}]}`,
	}, map[string]string{})
	defer srv.Close()
	res, err := newRPC(t, srv).GetTransferByTxID(context.Background(), "tx1")
	if err != nil {
		t.Fatalf("GetTransferByTxID: %v", err)
	}
	if res.Transfer.TxID != "tx1" || len(res.Transfers) != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRPCErrors(t *testing.T) {
	srv := fakeNode(t, map[string]string{}, map[string]string{
		"get_transfer_by_txid": `{"code":-8,"message":"Transaction not found."}`,
		"get_height":           `{"code":-13,"message":"No wallet file"}`,
	})
	defer srv.Close()
	rpc := newRPC(t, srv)

	_, err := rpc.GetTransferByTxID(context.Background(), "nope")
	if !wow.IsNotFoundError(err) {
		t.Errorf("expected not-found, got %v", err)
	}
	_, err = rpc.GetHeight(context.Background())
	if !wow.IsRPCFailure(err) {
		t.Errorf("expected rpc-failure, got %v", err)
	}

	srv.Close()
	_, err = rpc.GetInfo(context.Background())
	if !wow.IsRPCFailure(err) {
		t.Errorf("expected rpc-failure when the node is down, got %v", err)
	}
}

func TestDaemonCalls(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"get_fee_estimate":      `{"fee":40960,"status":"OK"}`,
		"get_info":              `{"height":500,"target_height":0,"synchronized":true,"status":"OK"}`,
		"get_last_block_header": `{"block_header":{"hash":"abc","height":499}}`,
		"create_address":        `{"address":"Wnew","address_index":9}`,
	}, nil)
	defer srv.Close()
	rpc := newRPC(t, srv)
	ctx := context.Background()

	if fee, err := rpc.GetFeeEstimate(ctx); err != nil || fee != 40960 {
		t.Errorf("GetFeeEstimate: %v %v", fee, err)
	}
	if info, err := rpc.GetInfo(ctx); err != nil || info.Height != 500 || !info.Synchronized {
		t.Errorf("GetInfo: %+v %v", info, err)
	}
	if h, err := rpc.GetLastBlockHeader(ctx); err != nil || h.Hash != "abc" {
		t.Errorf("GetLastBlockHeader: %+v %v", h, err)
	}
	if a, err := rpc.CreateAddress(ctx, 0, "invoice #1"); err != nil || a.Address != "Wnew" || a.AddressIndex != 9 {
		t.Errorf("CreateAddress: %+v %v", a, err)
	}
}

func TestNewWowneroRPCRequiresURIs(t *testing.T) {
	if _, err := NewWowneroRPC(wow.NodeConfig{DaemonURI: "http://x"}); !wow.IsError(err, wow.MalformedConfig) {
		t.Errorf("expected malformed-config, got %v", err)
	}
}

func TestParseFrame(t *testing.T) {
	events, err := parseFrame("WOW", []byte(`json-minimal-chain_main:{"first_height":10,"first_prev_id":"p","ids":["a","b"]}`))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if len(events) != 1 || events[0].Type != wow.Block || events[0].ID != "b" || events[0].CryptoCode != "WOW" {
		t.Errorf("unexpected chain events %+v", events)
	}

	events, err = parseFrame("WOW", []byte(`json-minimal-txpool_add:[{"id":"t1","blob_size":100},{"id":"t2"}]`))
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if len(events) != 2 || events[0].Type != wow.TX || events[1].ID != "t2" {
		t.Errorf("unexpected tx events %+v", events)
	}

	if _, err := parseFrame("WOW", []byte(`nonsense`)); err == nil {
		t.Errorf("expected error for frame without topic")
	}
	if _, err := parseFrame("WOW", []byte(`json-full-chain_main:{}`)); err == nil {
		t.Errorf("expected error for unknown topic")
	}
}

type recordingPerms struct{ paths []string }

func (p *recordingPerms) AllowReadWrite(path string) error {
	p.paths = append(p.paths, path)
	return nil
}

type recordingOpener struct{ name, password string }

func (o *recordingOpener) OpenWallet(ctx context.Context, filename, password string) error {
	o.name, o.password = filename, password
	return nil
}

func TestImportWallet(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	wallet := filepath.Join(src, "shop")
	keys := filepath.Join(src, "shop.keys")
	os.WriteFile(wallet, []byte("wallet"), 0600)
	os.WriteFile(keys, []byte("keys"), 0600)

	perms := &recordingPerms{}
	opener := &recordingOpener{}
	err := ImportWallet(context.Background(), wow.NodeConfig{WalletDir: dst}, opener, perms, wallet, keys, "pw")
	if err != nil {
		t.Fatalf("ImportWallet: %v", err)
	}
	if got, _ := os.ReadFile(filepath.Join(dst, "shop.keys")); string(got) != "keys" {
		t.Errorf("keys not copied")
	}
	if len(perms.paths) != 2 {
		t.Errorf("expected permissions on 2 files, got %v", perms.paths)
	}
	if opener.name != "shop" || opener.password != "pw" {
		t.Errorf("unexpected open_wallet call %+v", opener)
	}

	err = ImportWallet(context.Background(), wow.NodeConfig{WalletDir: dst}, opener, perms, wallet, wallet, "pw")
	if !wow.IsError(err, wow.BadRequest) {
		t.Errorf("expected bad-request for mismatched keys file, got %v", err)
	}
}

func TestOpenSubscriber(t *testing.T) {
	sock, err := openSubscriber("not-an-endpoint")
	if err == nil || sock != nil {
		t.Fatalf("expected connect failure, got %v %v", sock, err)
	}
	// zmq connects lazily, so an unused local port is accepted
	sock, err = openSubscriber("tcp://127.0.0.1:1")
	if err != nil {
		t.Fatalf("openSubscriber: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
