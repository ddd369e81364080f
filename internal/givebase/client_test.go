package givebase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestListCampaigns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/campaigns" {
			t.Errorf("path = %q, want /campaigns", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"campaigns": []Campaign{
				{ID: 7, Title: "Clean Water", RecipientAddress: "0xABC", RaisedAmount: "40.00", GoalAmount: "100.00"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	campaigns, err := c.ListCampaigns(context.Background())
	if err != nil {
		t.Fatalf("ListCampaigns error: %v", err)
	}
	if len(campaigns) != 1 || campaigns[0].ID != 7 {
		t.Fatalf("campaigns = %+v", campaigns)
	}
	if got := campaigns[0].ProgressPercent(); got != 40 {
		t.Fatalf("progress = %v, want 40", got)
	}
}

func TestProgressPercentClamped(t *testing.T) {
	tests := []struct {
		name string
		c    Campaign
		want float64
	}{
		{"normal", Campaign{RaisedAmount: "40", GoalAmount: "100"}, 40},
		{"over goal", Campaign{RaisedAmount: "250", GoalAmount: "100"}, 100},
		{"zero goal", Campaign{RaisedAmount: "10", GoalAmount: "0", Progress: 12}, 12},
		{"zero goal out of range", Campaign{RaisedAmount: "10", GoalAmount: "0", Progress: 140}, 100},
		{"unparseable", Campaign{RaisedAmount: "n/a", GoalAmount: "100", Progress: -3}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.ProgressPercent(); got != tc.want {
				t.Fatalf("ProgressPercent() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRecordDonationPostsClientReference(t *testing.T) {
	var got DonationRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/record-donation" || r.Method != http.MethodPost {
			t.Errorf("%s %s, want POST /record-donation", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	rec := DonationRecord{
		ClientReference:      "ref-1",
		DonorAddress:         "0xuniversal",
		DelegatedAddress:     "0xsub",
		CampaignID:           7,
		Amount:               "5",
		TxHash:               "0xdeadbeef",
		UsedDelegatedAccount: true,
	}
	if err := c.RecordDonation(context.Background(), rec); err != nil {
		t.Fatalf("RecordDonation error: %v", err)
	}
	if got != rec {
		t.Fatalf("recorded = %+v, want %+v", got, rec)
	}
}

func TestListDonationsPassesAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "0xuniversal" {
			t.Errorf("address = %q, want 0xuniversal", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"donations": []Donation{{ID: 1, Amount: "2.50"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	donations, err := c.ListDonations(context.Background(), "0xuniversal")
	if err != nil {
		t.Fatalf("ListDonations error: %v", err)
	}
	if len(donations) != 1 || donations[0].Amount != "2.50" {
		t.Fatalf("donations = %+v", donations)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(Stats{TotalDonated: "123.45", TotalDonors: 9})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	stats, err := c.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if stats.TotalDonors != 9 {
		t.Fatalf("stats = %+v", stats)
	}
	if calls.Load() != 3 {
		t.Fatalf("backend called %d times, want 3", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, zerolog.Nop())
	if _, err := c.GetStats(context.Background()); err == nil {
		t.Fatal("GetStats succeeded, want error")
	}
	if calls.Load() != 1 {
		t.Fatalf("backend called %d times, want 1", calls.Load())
	}
}
