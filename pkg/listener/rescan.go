package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"golang.org/x/sync/errgroup"
)

// reconcileContext is one monitored invoice with everything a pass
// needs to match transfers against it, resolved once per pass.
// destination is fixed when the pass starts; invoice may be reloaded
// after an activation and only drives due and notifications.
type reconcileContext struct {
	invoice     wow.Invoice
	destination string
	prompt      wow.PromptDetails
	payments    []wow.PaymentRecord
}

func newReconcileContext(inv wow.Invoice, payments []wow.PaymentRecord) *reconcileContext {
	return &reconcileContext{invoice: inv, destination: inv.Destination, prompt: inv.Prompt, payments: payments}
}

// queryPlan maps each account to the sub-address indices of interest.
// Accounts are kept in ascending order; indices keep insertion order
// and are deduplicated as they are added.
type queryPlan struct {
	accounts []uint32
	indices  map[uint32][]uint32
	seen     map[uint32]map[uint32]bool
}

func newQueryPlan() *queryPlan {
	return &queryPlan{
		indices: map[uint32][]uint32{},
		seen:    map[uint32]map[uint32]bool{},
	}
}

func (p *queryPlan) add(account, index uint32) {
	set, ok := p.seen[account]
	if !ok {
		set = map[uint32]bool{}
		p.seen[account] = set
		at := sort.Search(len(p.accounts), func(i int) bool { return p.accounts[i] >= account })
		p.accounts = append(p.accounts, 0)
		copy(p.accounts[at+1:], p.accounts[at:])
		p.accounts[at] = account
	}
	if set[index] {
		return
	}
	set[index] = true
	p.indices[account] = append(p.indices[account], index)
}

func buildQueryPlan(contexts []*reconcileContext) *queryPlan {
	plan := newQueryPlan()
	for _, rc := range contexts {
		for _, p := range rc.payments {
			plan.add(rc.prompt.AccountIndex, p.Data.SubaddressIndex)
		}
		plan.add(rc.prompt.AccountIndex, rc.prompt.AddressIndex)
	}
	return plan
}

type accountTransfers struct {
	account   uint32
	transfers []wow.WalletTransfer
	err       error
}

// Rescan reconciles every monitored invoice for the listener's currency.
// A failed account query does not stop the others, but its error is
// returned once the rest of the pass has been applied.
func (l *Listener) Rescan(ctx context.Context) error {
	invoices, err := l.store.GetMonitoredInvoices(ctx, l.cryptoCode)
	if err != nil {
		return fmt.Errorf("GetMonitoredInvoices: %w", err)
	}
	if len(invoices) == 0 {
		return nil
	}
	contexts, errs := l.buildContexts(ctx, invoices)
	if len(contexts) == 0 {
		return errors.Join(errs...)
	}

	plan := buildQueryPlan(contexts)
	b := newBatch()
	for _, res := range l.fetchTransfers(ctx, plan) {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		for _, t := range res.transfers {
			rc := matchTransfer(contexts, t)
			if rc == nil {
				continue // not for any monitored invoice
			}
			in := transferInput{
				address:       t.Address,
				amount:        t.Amount,
				account:       t.SubaddrIndex.Major,
				subaddress:    t.SubaddrIndex.Minor,
				txid:          t.TxID,
				confirmations: t.Confirmations,
				height:        t.Height,
				lockTime:      t.LockTime(),
			}
			if err := l.applyTransfer(ctx, rc, in, b); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := l.commit(ctx, b); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (l *Listener) buildContexts(ctx context.Context, invoices []wow.Invoice) ([]*reconcileContext, []error) {
	var errs []error
	contexts := make([]*reconcileContext, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.Activated {
			continue
		}
		if err := inv.ValidatePrompt(); err != nil {
			log.Println("Listener: skipping invoice:", err)
			continue
		}
		payments, err := l.store.GetPayments(ctx, inv.ID, l.cryptoCode)
		if err != nil {
			errs = append(errs, fmt.Errorf("GetPayments %s: %w", inv.ID, err))
			continue
		}
		contexts = append(contexts, newReconcileContext(inv, payments))
	}
	return contexts, errs
}

// fetchTransfers runs one get_transfers per account concurrently.
func (l *Listener) fetchTransfers(ctx context.Context, plan *queryPlan) []accountTransfers {
	results := make([]accountTransfers, len(plan.accounts))
	var g errgroup.Group
	for i, account := range plan.accounts {
		i, account := i, account
		g.Go(func() error {
			transfers, err := l.wallet.GetTransfers(ctx, account, plan.indices[account])
			if err != nil {
				l.metrics.RPCFailures.WithLabelValues("get_transfers").Inc()
				err = fmt.Errorf("get_transfers account %d: %w", account, err)
			}
			results[i] = accountTransfers{account: account, transfers: transfers, err: err}
			return nil // never cancel the other accounts
		})
	}
	g.Wait()
	return results
}

// matchTransfer finds the invoice a transfer belongs to: first an existing
// payment with the same destination and txid, then any invoice whose
// destination at the start of the pass is the transfer's address.
func matchTransfer(contexts []*reconcileContext, t wow.WalletTransfer) *reconcileContext {
	for _, rc := range contexts {
		for _, p := range rc.payments {
			if p.Destination == t.Address && p.Data.TransactionID == t.TxID {
				return rc
			}
		}
	}
	// only the address is compared: two invoices sharing a destination would collide.
	for _, rc := range contexts {
		if rc.destination == t.Address {
			return rc
		}
	}
	return nil
}
