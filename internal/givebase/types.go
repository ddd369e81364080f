package givebase

import (
	"strconv"
	"time"
)

// Campaign is an immutable snapshot of a cause accepting donations. Field
// names on the wire follow the backend API.
type Campaign struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Emoji            string  `json:"emoji"`
	RecipientAddress string  `json:"recipient_address"`
	RaisedAmount     string  `json:"raised_amount"`
	GoalAmount       string  `json:"goal_amount"`
	Progress         float64 `json:"progress"`
}

// ProgressPercent derives raised/goal as a percentage clamped to [0, 100].
// The backend sends a precomputed value; this recomputes it so display never
// trusts an out-of-range number.
func (c Campaign) ProgressPercent() float64 {
	raised, err := strconv.ParseFloat(c.RaisedAmount, 64)
	if err != nil {
		return clampPercent(c.Progress)
	}
	goal, err := strconv.ParseFloat(c.GoalAmount, 64)
	if err != nil || goal <= 0 {
		return clampPercent(c.Progress)
	}
	return clampPercent(raised / goal * 100)
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Donation is a record from the donor's history as the ledger returns it.
type Donation struct {
	ID                   int64     `json:"id"`
	CampaignID           int64     `json:"campaign_id,omitempty"`
	CampaignTitle        string    `json:"campaign_title,omitempty"`
	CampaignEmoji        string    `json:"campaign_emoji,omitempty"`
	Amount               string    `json:"amount"`
	TxHash               string    `json:"tx_hash"`
	UsedDelegatedAccount bool      `json:"used_sub_account"`
	CreatedAt            time.Time `json:"created_at"`
}

// DonationRecord is the write-side payload emitted after a confirmed
// donation. ClientReference lets the backend de-duplicate if the same
// confirmation is reported twice.
type DonationRecord struct {
	ClientReference      string `json:"client_reference"`
	DonorAddress         string `json:"donor_address"`
	DelegatedAddress     string `json:"sub_account_address"`
	CampaignID           int64  `json:"campaign_id"`
	Amount               string `json:"amount"`
	TxHash               string `json:"tx_hash"`
	UsedDelegatedAccount bool   `json:"used_spend_permission"`
}

// Stats are the aggregate numbers shown on the landing view.
type Stats struct {
	TotalDonated           string  `json:"total_donated"`
	TotalDonors            int     `json:"total_donors"`
	DelegatedDonationCount int     `json:"sub_account_donations"`
	DelegatedPercentage    float64 `json:"sub_account_percentage"`
}
