package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/givebase/quickgive/internal/givebase"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := Open("file:" + filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open("postgres://localhost/quickgive"); err == nil {
		t.Fatal("Open accepted a postgres URL")
	}
}

func TestAppendAndListByDonor(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first := givebase.Donation{
		CampaignID:    7,
		CampaignTitle: "Clean Water",
		CampaignEmoji: "💧",
		Amount:        "5",
		TxHash:        "0xaaa",
		CreatedAt:     now.Add(-time.Hour),
	}
	second := givebase.Donation{
		CampaignID:           7,
		Amount:               "1.5",
		TxHash:               "0xbbb",
		UsedDelegatedAccount: true,
		CreatedAt:            now,
	}
	for _, d := range []givebase.Donation{first, second} {
		if err := store.Append(ctx, "0xdonor", d); err != nil {
			t.Fatalf("Append(%s): %v", d.TxHash, err)
		}
	}
	if err := store.Append(ctx, "0xother", givebase.Donation{Amount: "9", TxHash: "0xccc", CreatedAt: now}); err != nil {
		t.Fatalf("Append other donor: %v", err)
	}

	got, err := store.ListByDonor(ctx, "0xdonor")
	if err != nil {
		t.Fatalf("ListByDonor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].TxHash != "0xbbb" || got[1].TxHash != "0xaaa" {
		t.Errorf("order = [%s %s], want [0xbbb 0xaaa]", got[0].TxHash, got[1].TxHash)
	}
	if !got[0].UsedDelegatedAccount {
		t.Error("UsedDelegatedAccount lost on round trip")
	}
	if got[1].CampaignTitle != "Clean Water" || got[1].CampaignEmoji != "💧" {
		t.Errorf("campaign fields lost: %+v", got[1])
	}
}

func TestAppendSameTxHashIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d := givebase.Donation{Amount: "2", TxHash: "0xdup", CreatedAt: time.Now()}
	if err := store.Append(ctx, "0xdonor", d); err != nil {
		t.Fatalf("Append: %v", err)
	}
	d.Amount = "3"
	if err := store.Append(ctx, "0xdonor", d); err != nil {
		t.Fatalf("Append again: %v", err)
	}

	got, err := store.ListByDonor(ctx, "0xdonor")
	if err != nil {
		t.Fatalf("ListByDonor: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 after duplicate append", len(got))
	}
	if got[0].Amount != "3" {
		t.Errorf("Amount = %q, want the replacing row's 3", got[0].Amount)
	}
}

func TestReplaceAllSwapsHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.Append(ctx, "0xdonor", givebase.Donation{Amount: "1", TxHash: "0xstale", CreatedAt: now}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	fresh := []givebase.Donation{
		{Amount: "4", TxHash: "0x111", CreatedAt: now.Add(-time.Minute)},
		{Amount: "6", TxHash: "0x222", CreatedAt: now},
	}
	if err := store.ReplaceAll(ctx, "0xdonor", fresh); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	got, err := store.ListByDonor(ctx, "0xdonor")
	if err != nil {
		t.Fatalf("ListByDonor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, d := range got {
		if d.TxHash == "0xstale" {
			t.Fatal("stale row survived ReplaceAll")
		}
	}
}

func TestListByDonorEmpty(t *testing.T) {
	store := openTestStore(t)
	got, err := store.ListByDonor(context.Background(), "0xnobody")
	if err != nil {
		t.Fatalf("ListByDonor: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}
