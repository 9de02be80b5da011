package store

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStoreCreateGet(t *testing.T) {
	s := New()
	initiate := json.RawMessage(`{"loan_id":"L-1","system_id":"S-1"}`)
	created := s.Create("call-1", initiate)
	if created.CallID != "call-1" {
		t.Fatalf("CallID = %q, want %q", created.CallID, "call-1")
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("CreatedAt should not be zero")
	}

	got, err := s.Get("call-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Initiate) != string(initiate) {
		t.Fatalf("Initiate = %s, want %s", got.Initiate, initiate)
	}
	if !got.Metadata.Empty() {
		t.Fatalf("new session metadata should be empty: %+v", got.Metadata)
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := New()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestStoreSetMetadata(t *testing.T) {
	s := New()
	s.Create("call-1", nil)

	rec := CustomerRecord{
		DebtorName:     "Ramesh Kumar",
		Gender:         "Male",
		EMIAmount:      "15000",
		PaymentDueDate: "2025-01-05",
		Product:        "Two Wheeler Loan",
		DPD:            "12",
	}
	if err := s.SetMetadata("call-1", rec); err != nil {
		t.Fatalf("SetMetadata() error = %v", err)
	}

	got, err := s.Get("call-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Metadata != rec {
		t.Fatalf("Metadata = %+v, want %+v", got.Metadata, rec)
	}

	if err := s.SetMetadata("missing", rec); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetMetadata(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreSetDisposition(t *testing.T) {
	s := New()
	s.Create("call-1", nil)
	if err := s.SetDisposition("call-1", "PTP"); err != nil {
		t.Fatalf("SetDisposition() error = %v", err)
	}
	got, _ := s.Get("call-1")
	if got.Disposition != "PTP" {
		t.Fatalf("Disposition = %q, want %q", got.Disposition, "PTP")
	}
}

func TestStoreCloneIsolation(t *testing.T) {
	s := New()
	s.Create("call-1", json.RawMessage(`{}`))

	got, _ := s.Get("call-1")
	got.Disposition = "mutated"
	got.Metadata.DebtorName = "mutated"

	fresh, _ := s.Get("call-1")
	if fresh.Disposition != "" || fresh.Metadata.DebtorName != "" {
		t.Fatalf("mutating a returned clone leaked into the store: %+v", fresh)
	}
}

func TestStoreCount(t *testing.T) {
	s := New()
	s.Create("a", nil)
	s.Create("b", nil)
	if n := s.Count(); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
}
