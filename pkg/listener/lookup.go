package listener

import (
	"context"
	"errors"
	"fmt"
	"log"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

type destinationGroup struct {
	address string
	amount  int64
	index   wow.SubaddrIndex // of the first destination in the group
}

// groupByAddress sums a transaction's destinations per address,
// keeping the order in which addresses first appear.
func groupByAddress(transfers []wow.WalletTransfer) []destinationGroup {
	var groups []destinationGroup
	pos := map[string]int{}
	for _, t := range transfers {
		if i, ok := pos[t.Address]; ok {
			groups[i].amount += t.Amount
			continue
		}
		pos[t.Address] = len(groups)
		groups = append(groups, destinationGroup{address: t.Address, amount: t.Amount, index: t.SubaddrIndex})
	}
	return groups
}

// TargetedLookup reconciles the destinations of a single transaction.
func (l *Listener) TargetedLookup(ctx context.Context, txid string) error {
	res, err := l.wallet.GetTransferByTxID(ctx, txid)
	if err != nil {
		if wow.IsNotFoundError(err) {
			return nil // not a transfer this wallet knows about
		}
		l.metrics.RPCFailures.WithLabelValues("get_transfer_by_txid").Inc()
		return fmt.Errorf("get_transfer_by_txid %s: %w", txid, err)
	}
	tx := res.Transfer
	if tx.TxID == "" {
		tx.TxID = txid
	}

	var errs []error
	b := newBatch()
	for _, g := range groupByAddress(res.Transfers) {
		inv, err := l.store.GetInvoiceByDestination(ctx, l.cryptoCode, g.address)
		if wow.IsNotFoundError(err) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("GetInvoiceByDestination %s: %w", g.address, err))
			continue
		}
		if err := inv.ValidatePrompt(); err != nil {
			log.Println("Listener: skipping destination:", err)
			continue
		}
		payments, err := l.store.GetPayments(ctx, inv.ID, l.cryptoCode)
		if err != nil {
			errs = append(errs, fmt.Errorf("GetPayments %s: %w", inv.ID, err))
			continue
		}
		rc := newReconcileContext(inv, payments)
		in := transferInput{
			address:       g.address,
			amount:        g.amount,
			account:       g.index.Major,
			subaddress:    g.index.Minor,
			txid:          tx.TxID,
			confirmations: tx.Confirmations,
			height:        tx.Height,
			lockTime:      tx.LockTime(),
		}
		if err := l.applyTransfer(ctx, rc, in, b); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.commit(ctx, b); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
