package webapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/dogecoinfoundation/wowpay/pkg/paymethod"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tjstebbing/conductor"
)

// PromptConfigurer reserves a destination for a new invoice.
type PromptConfigurer interface {
	ConfigurePrompt(ctx context.Context, inv wow.Invoice, details wow.PaymentPromptDetails) (wow.Invoice, error)
}

// WebAPI implements conductor.Service
type WebAPI struct {
	config   wow.Config
	store    wow.Store
	prompts  PromptConfigurer
	tracker  *wow.AvailabilityTracker
	events   chan<- wow.NodeEvent
	gatherer prometheus.Gatherer
}

// interface guard ensures WebAPI implements conductor.Service
var _ conductor.Service = WebAPI{}

// NewWebAPI wires the HTTP surface. Daemon and wallet notify callbacks are
// queued on events; gatherer backs /metrics.
func NewWebAPI(config wow.Config, store wow.Store, prompts PromptConfigurer, tracker *wow.AvailabilityTracker,
	events chan<- wow.NodeEvent, gatherer prometheus.Gatherer) (WebAPI, error) {
	return WebAPI{config: config, store: store, prompts: prompts, tracker: tracker, events: events, gatherer: gatherer}, nil
}

func (t WebAPI) Run(started, stopped chan bool, stop chan context.Context) error {
	go func() {
		server := &http.Server{
			Addr:              t.config.WebAPI.Bind + ":" + t.config.WebAPI.Port,
			Handler:           t.createRouter(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Printf("WebAPI: listening on %s:%s\n", t.config.WebAPI.Bind, t.config.WebAPI.Port)
		go func() {
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Fatalf("HTTP server ListenAndServe: %v", err)
			}
		}()

		started <- true
		ctx := <-stop
		server.Shutdown(ctx)
		stopped <- true
	}()
	return nil
}

func (t WebAPI) createRouter() *httprouter.Router {
	mux := httprouter.New()

	// GET /daemon-callback/block?cryptoCode=WOW&hash=<h>  (wownerod --block-notify)
	mux.GET("/daemon-callback/block", t.blockCallback)

	// GET /daemon-callback/tx?cryptoCode=WOW&hash=<h>  (wownero-wallet-rpc --tx-notify)
	mux.GET("/daemon-callback/tx", t.txCallback)

	// GET /summary -> { summaries, all_available }
	mux.GET("/summary", t.getSummary)

	// POST { invoice } /invoice -> { invoice } create an invoice and reserve its destination
	mux.POST("/invoice", t.createInvoice)

	// GET /invoice/:invoiceID -> { invoice, payments, payment_link }
	mux.GET("/invoice/:invoiceID", t.getInvoice)

	mux.GET("/invoice/:invoiceID/qr.png", t.getInvoiceQR)

	if t.gatherer != nil {
		mux.Handler("GET", "/metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (t WebAPI) blockCallback(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	t.enqueue(w, r, wow.NewBlockEvent)
}

func (t WebAPI) txCallback(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	t.enqueue(w, r, wow.NewTxEvent)
}

func (t WebAPI) enqueue(w http.ResponseWriter, r *http.Request, event func(cryptoCode, hash string) wow.NodeEvent) {
	qs := r.URL.Query()
	hash := qs.Get("hash")
	if hash == "" {
		sendBadRequest(w, "missing 'hash' in query")
		return
	}
	cryptoCode := qs.Get("cryptoCode")
	if cryptoCode == "" {
		cryptoCode = t.config.WowPay.CryptoCode
	}
	if cryptoCode != t.config.WowPay.CryptoCode {
		sendBadRequest(w, fmt.Sprintf("unsupported cryptoCode: %s", cryptoCode))
		return
	}
	select {
	case t.events <- event(cryptoCode, hash):
		sendResponse(w, map[string]bool{"queued": true})
	default:
		sendErrorResponse(w, http.StatusServiceUnavailable, wow.NotAvailable, "listener queue is full")
	}
}

type SummaryResponse struct {
	Summaries    []wow.AvailabilitySummary `json:"summaries"`
	AllAvailable bool                      `json:"all_available"`
}

func (t WebAPI) getSummary(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	sendResponse(w, SummaryResponse{
		Summaries:    t.tracker.Summaries(),
		AllAvailable: t.tracker.AllAvailable(),
	})
}

type InvoiceCreateRequest struct {
	ID           string          `json:"id"`
	Amount       wow.CoinAmount  `json:"amount"`
	SpeedPolicy  wow.SpeedPolicy `json:"speed_policy"`
	AccountIndex uint32          `json:"account_index"`
	// zero, one, ten, custom, or empty for the speed policy
	ConfirmationThreshold string `json:"confirmation_threshold"`
	CustomThreshold       int64  `json:"custom_threshold"`
}

type InvoiceResponse struct {
	wow.Invoice
	Due         wow.CoinAmount      `json:"due"`
	PaymentLink string              `json:"payment_link"`
	Payments    []wow.PaymentRecord `json:"payments"`
}

func (t WebAPI) createInvoice(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	o := InvoiceCreateRequest{SpeedPolicy: wow.MediumSpeed}
	err := json.NewDecoder(r.Body).Decode(&o)
	if err != nil {
		sendBadRequest(w, fmt.Sprintf("bad request body (expecting JSON): %v", err))
		return
	}
	threshold, err := paymethod.ParseThresholdChoice(o.ConfirmationThreshold, o.CustomThreshold)
	if err != nil {
		sendError(w, "CreateInvoice", err)
		return
	}
	if o.ID == "" {
		o.ID = newInvoiceID()
	}
	inv := wow.Invoice{
		ID:      o.ID,
		Amount:  o.Amount,
		Speed:   o.SpeedPolicy,
		Created: time.Now().UTC(),
	}
	details := wow.PaymentPromptDetails{AccountIndex: o.AccountIndex, InvoiceSettledConfirmationThreshold: threshold}
	inv, err = t.prompts.ConfigurePrompt(r.Context(), inv, details)
	if err != nil {
		sendError(w, "CreateInvoice", err)
		return
	}
	sendResponse(w, InvoiceResponse{Invoice: inv, Due: inv.Due(), PaymentLink: inv.PaymentLink(), Payments: []wow.PaymentRecord{}})
}

func (t WebAPI) getInvoice(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("invoiceID")
	if id == "" {
		sendBadRequest(w, "missing invoice ID")
		return
	}
	invoice, err := t.store.GetInvoice(r.Context(), id)
	if err != nil {
		sendError(w, "GetInvoice", err)
		return
	}
	payments, err := t.store.GetPayments(r.Context(), id, invoice.CryptoCode)
	if err != nil {
		sendError(w, "GetPayments", err)
		return
	}
	if payments == nil {
		payments = []wow.PaymentRecord{}
	}
	sendResponse(w, InvoiceResponse{Invoice: invoice, Due: invoice.Due(), PaymentLink: invoice.PaymentLink(), Payments: payments})
}

func (t WebAPI) getInvoiceQR(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id := p.ByName("invoiceID")
	if id == "" {
		sendBadRequest(w, "missing invoice ID")
		return
	}
	invoice, err := t.store.GetInvoice(r.Context(), id)
	if err != nil {
		sendErrorResponse(w, 404, wow.NotFound, "no such invoice")
		return
	}
	qr, err := GenerateQRCodePNG(invoice.PaymentLink(), 512)
	if err != nil {
		sendError(w, "GenerateQRCodePNG", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	// the link changes as payments arrive and destinations rotate
	w.Header().Set("Cache-Control", "no-store")
	w.Write(qr)
}

func newInvoiceID() string {
	b := make([]byte, 12)
	rand.Read(b)
	return hex.EncodeToString(b)
}
