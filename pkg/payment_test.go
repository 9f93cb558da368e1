package wow

import "testing"

func TestPaymentID(t *testing.T) {
	id := PaymentID("abcd", 2, 17)
	if id != "abcd#2#17" {
		t.Fatalf("unexpected id %q", id)
	}
	txid, acc, addr, err := ParsePaymentID(id)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if txid != "abcd" || acc != 2 || addr != 17 {
		t.Fatalf("parsed %s %d %d", txid, acc, addr)
	}
}

func TestParsePaymentIDErrors(t *testing.T) {
	for _, id := range []string{"", "abcd", "abcd#1", "#1#2", "abcd#x#2", "abcd#1#-2", "a#1#2#3"} {
		if _, _, _, err := ParsePaymentID(id); !IsError(err, BadRequest) {
			t.Errorf("%q: expected BadRequest, got %v", id, err)
		}
	}
}
