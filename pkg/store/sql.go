package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
	"github.com/shopspring/decimal"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with '?' placeholders and passed through rebind.
type sqlStore struct {
	db     *sql.DB
	rebind func(string) string
	dbErr  func(err error, where string) error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const invoiceColumns = "id, crypto_code, destination, amount, activated, speed_policy, status, prompt, created"
const paymentColumns = "id, invoice_id, crypto_code, status, amount, destination, created, data"

// Defer this until shutdown
func (s sqlStore) Close() {
	s.db.Close()
}

func (s sqlStore) StoreInvoice(ctx context.Context, inv wow.Invoice) error {
	prompt, err := json.Marshal(inv.Prompt)
	if err != nil {
		return s.dbErr(err, "StoreInvoice: json.Marshal prompt")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dbErr(err, "StoreInvoice: Begin")
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, s.rebind("INSERT INTO invoice ("+invoiceColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		inv.ID, inv.CryptoCode, inv.Destination, inv.Amount.String(), inv.Activated, int(inv.Speed), string(inv.Status), string(prompt), inv.Created)
	if err != nil {
		return s.dbErr(err, "StoreInvoice: insert invoice")
	}
	if inv.Destination != "" {
		err = s.indexDestination(ctx, tx, inv.CryptoCode, inv.Destination, inv.ID)
		if err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return s.dbErr(err, "StoreInvoice: Commit")
	}
	return nil
}

func (s sqlStore) indexDestination(ctx context.Context, q queryer, cryptoCode, address, invoiceID string) error {
	_, err := q.ExecContext(ctx, s.rebind("INSERT INTO invoice_address (crypto_code, address, invoice_id) VALUES (?, ?, ?)"),
		cryptoCode, address, invoiceID)
	if err != nil {
		return s.dbErr(err, "indexDestination: insert invoice_address")
	}
	return nil
}

func (s sqlStore) GetInvoice(ctx context.Context, id string) (wow.Invoice, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+invoiceColumns+" FROM invoice WHERE id = ?"), id)
	inv, err := s.scanInvoice(row)
	if err == sql.ErrNoRows {
		return wow.Invoice{}, wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	if err != nil {
		return wow.Invoice{}, s.dbErr(err, "GetInvoice: row.Scan")
	}
	return s.withPaid(ctx, inv)
}

func (s sqlStore) ReloadInvoice(ctx context.Context, id string) (wow.Invoice, error) {
	return s.GetInvoice(ctx, id)
}

func (s sqlStore) GetInvoiceByDestination(ctx context.Context, cryptoCode string, address string) (wow.Invoice, error) {
	var id string
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT invoice_id FROM invoice_address WHERE crypto_code = ? AND address = ?"), cryptoCode, address)
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return wow.Invoice{}, wow.NewErr(wow.NotFound, "no invoice for address: %v", address)
	}
	if err != nil {
		return wow.Invoice{}, s.dbErr(err, "GetInvoiceByDestination: row.Scan")
	}
	return s.GetInvoice(ctx, id)
}

func (s sqlStore) GetMonitoredInvoices(ctx context.Context, cryptoCode string) ([]wow.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+invoiceColumns+" FROM invoice WHERE crypto_code = ? AND status IN (?, ?) ORDER BY created, id"),
		cryptoCode, string(wow.InvoiceNew), string(wow.InvoiceProcessing))
	if err != nil {
		return nil, s.dbErr(err, "GetMonitoredInvoices: querying invoices")
	}
	var invoices []wow.Invoice
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, s.dbErr(err, "GetMonitoredInvoices: scanning invoice row")
		}
		invoices = append(invoices, inv)
	}
	if err = rows.Err(); err != nil { // docs say this check is required!
		rows.Close()
		return nil, s.dbErr(err, "GetMonitoredInvoices: querying invoices")
	}
	rows.Close()
	for i := range invoices {
		invoices[i], err = s.withPaid(ctx, invoices[i])
		if err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (s sqlStore) UpdateInvoicePrompt(ctx context.Context, id string, destination string, prompt wow.PromptDetails) error {
	promptJSON, err := json.Marshal(prompt)
	if err != nil {
		return s.dbErr(err, "UpdateInvoicePrompt: json.Marshal prompt")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dbErr(err, "UpdateInvoicePrompt: Begin")
	}
	defer tx.Rollback()
	var cryptoCode string
	err = tx.QueryRowContext(ctx, s.rebind("SELECT crypto_code FROM invoice WHERE id = ?"), id).Scan(&cryptoCode)
	if err == sql.ErrNoRows {
		return wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	if err != nil {
		return s.dbErr(err, "UpdateInvoicePrompt: row.Scan")
	}
	_, err = tx.ExecContext(ctx, s.rebind("UPDATE invoice SET destination = ?, prompt = ?, activated = ? WHERE id = ?"),
		destination, string(promptJSON), true, id)
	if err != nil {
		return s.dbErr(err, "UpdateInvoicePrompt: update invoice")
	}
	if err = s.indexDestination(ctx, tx, cryptoCode, destination, id); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return s.dbErr(err, "UpdateInvoicePrompt: Commit")
	}
	return nil
}

func (s sqlStore) SetInvoiceStatus(ctx context.Context, id string, status wow.InvoiceStatus) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE invoice SET status = ? WHERE id = ?"), string(status), id)
	if err != nil {
		return s.dbErr(err, "SetInvoiceStatus: update invoice")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.dbErr(err, "SetInvoiceStatus: RowsAffected")
	}
	if n == 0 {
		return wow.NewErr(wow.NotFound, "invoice not found: %v", id)
	}
	return nil
}

func (s sqlStore) GetPayments(ctx context.Context, invoiceID string, cryptoCode string) ([]wow.PaymentRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT "+paymentColumns+" FROM payment WHERE invoice_id = ? AND crypto_code = ? ORDER BY created, id"),
		invoiceID, cryptoCode)
	if err != nil {
		return nil, s.dbErr(err, "GetPayments: querying payments")
	}
	defer rows.Close()
	var payments []wow.PaymentRecord
	for rows.Next() {
		var p wow.PaymentRecord
		var status, amount, data string
		err := rows.Scan(&p.ID, &p.InvoiceID, &p.CryptoCode, &status, &amount, &p.Destination, &p.Created, &data)
		if err != nil {
			return nil, s.dbErr(err, "GetPayments: scanning payment row")
		}
		p.Status = wow.PaymentStatus(status)
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, s.dbErr(err, fmt.Sprintf("GetPayments: invalid decimal amount in payment database: %v", amount))
		}
		if err = json.Unmarshal([]byte(data), &p.Data); err != nil {
			return nil, s.dbErr(err, "GetPayments: json.Unmarshal data")
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, s.dbErr(err, "GetPayments: querying payments")
	}
	return payments, nil
}

func (s sqlStore) AddPayment(ctx context.Context, p wow.PaymentRecord, relatedTxIDs []string) (*wow.PaymentRecord, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return nil, s.dbErr(err, "AddPayment: json.Marshal data")
	}
	_, err = s.db.ExecContext(ctx, s.rebind("INSERT INTO payment ("+paymentColumns+", txids) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		p.ID, p.InvoiceID, p.CryptoCode, string(p.Status), p.Amount.String(), p.Destination, p.Created, string(data), strings.Join(relatedTxIDs, ","))
	if err != nil {
		err = s.dbErr(err, "AddPayment: insert payment")
		if wow.IsAlreadyExistsError(err) {
			return nil, nil // duplicate identity
		}
		return nil, err
	}
	return &p, nil
}

func (s sqlStore) UpdatePayments(ctx context.Context, payments []wow.PaymentRecord) error {
	if len(payments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dbErr(err, "UpdatePayments: Begin")
	}
	defer tx.Rollback()
	for _, p := range payments {
		data, err := json.Marshal(p.Data)
		if err != nil {
			return s.dbErr(err, "UpdatePayments: json.Marshal data")
		}
		_, err = tx.ExecContext(ctx, s.rebind("UPDATE payment SET status = ?, data = ? WHERE id = ? AND invoice_id = ? AND crypto_code = ?"),
			string(p.Status), string(data), p.ID, p.InvoiceID, p.CryptoCode)
		if err != nil {
			return s.dbErr(err, "UpdatePayments: update payment")
		}
	}
	if err = tx.Commit(); err != nil {
		return s.dbErr(err, "UpdatePayments: Commit")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s sqlStore) scanInvoice(row rowScanner) (wow.Invoice, error) {
	var inv wow.Invoice
	var amount, status, prompt string
	var speed int
	err := row.Scan(&inv.ID, &inv.CryptoCode, &inv.Destination, &amount, &inv.Activated, &speed, &status, &prompt, &inv.Created)
	if err != nil {
		return wow.Invoice{}, err
	}
	inv.Speed = wow.SpeedPolicy(speed)
	inv.Status = wow.InvoiceStatus(status)
	inv.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return wow.Invoice{}, fmt.Errorf("invalid decimal amount %q: %w", amount, err)
	}
	if err = json.Unmarshal([]byte(prompt), &inv.Prompt); err != nil {
		return wow.Invoice{}, fmt.Errorf("invalid prompt details: %w", err)
	}
	return inv, nil
}

// withPaid fills in Paid from the recorded payments.
func (s sqlStore) withPaid(ctx context.Context, inv wow.Invoice) (wow.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT amount FROM payment WHERE invoice_id = ?"), inv.ID)
	if err != nil {
		return wow.Invoice{}, s.dbErr(err, "withPaid: querying payments")
	}
	defer rows.Close()
	paid := wow.ZeroCoins
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return wow.Invoice{}, s.dbErr(err, "withPaid: scanning amount")
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return wow.Invoice{}, s.dbErr(err, fmt.Sprintf("withPaid: invalid decimal amount: %v", amount))
		}
		paid = paid.Add(a)
	}
	if err = rows.Err(); err != nil {
		return wow.Invoice{}, s.dbErr(err, "withPaid: querying payments")
	}
	inv.Paid = paid
	return inv, nil
}
