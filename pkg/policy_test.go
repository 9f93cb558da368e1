package wow

import (
	"encoding/json"
	"testing"
)

func TestConfirmationsRequired(t *testing.T) {
	five := int64(5)
	zero := int64(0)
	four := int64(4)
	cases := []struct {
		name  string
		data  PaymentData
		speed SpeedPolicy
		want  int64
	}{
		{"immature lock wins over override", PaymentData{ConfirmationCount: 3, LockTime: 10, InvoiceSettledConfirmationThreshold: &zero}, HighSpeed, 7},
		{"override", PaymentData{ConfirmationCount: 1, InvoiceSettledConfirmationThreshold: &five}, HighSpeed, 5},
		{"zero override", PaymentData{InvoiceSettledConfirmationThreshold: &zero}, LowSpeed, 0},
		{"high", PaymentData{}, HighSpeed, 0},
		{"medium", PaymentData{}, MediumSpeed, 1},
		{"low medium", PaymentData{}, LowMediumSpeed, 2},
		{"low", PaymentData{}, LowSpeed, 6},
		{"unknown speed", PaymentData{}, SpeedPolicy(42), 6},
		{"two of five locked", PaymentData{ConfirmationCount: 2, LockTime: 5}, LowSpeed, 3},
		{"matured lock then override", PaymentData{ConfirmationCount: 10, LockTime: 5, InvoiceSettledConfirmationThreshold: &four}, LowSpeed, 4},
		{"matured lock falls through", PaymentData{ConfirmationCount: 10, LockTime: 10}, MediumSpeed, 1},
	}
	for _, c := range cases {
		if got := ConfirmationsRequired(c.data, c.speed); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestIsSettled(t *testing.T) {
	if IsSettled(PaymentData{ConfirmationCount: 0}, MediumSpeed) {
		t.Errorf("unconfirmed payment settled at MediumSpeed")
	}
	if !IsSettled(PaymentData{ConfirmationCount: 0}, HighSpeed) {
		t.Errorf("unconfirmed payment not settled at HighSpeed")
	}
	if IsSettled(PaymentData{ConfirmationCount: 6, LockTime: 20}, HighSpeed) {
		t.Errorf("locked payment settled")
	}
	four := int64(4)
	if !IsSettled(PaymentData{ConfirmationCount: 10, LockTime: 5, InvoiceSettledConfirmationThreshold: &four}, LowSpeed) {
		t.Errorf("matured lock with override 4 not settled at 10 confirmations")
	}
	if !IsSettled(PaymentData{ConfirmationCount: 6}, LowSpeed) {
		t.Errorf("6 confirmations not settled at LowSpeed")
	}
}

func TestSpeedPolicyJSON(t *testing.T) {
	b, err := json.Marshal(LowMediumSpeed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"LowMediumSpeed"` {
		t.Fatalf("got %s", b)
	}
	var s SpeedPolicy
	if err := json.Unmarshal([]byte(`"LowSpeed"`), &s); err != nil || s != LowSpeed {
		t.Fatalf("unmarshal: %v %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"Warp"`), &s); !IsError(err, BadRequest) {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}
