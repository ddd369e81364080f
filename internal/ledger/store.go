package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/givebase/quickgive/internal/givebase"
)

// Store mirrors the donor's remote history locally so the daily-spend
// estimate and history display keep working when the backend is unreachable.
// Append-only from this side; the backend remains the source of truth.
type Store interface {
	ReplaceAll(ctx context.Context, donorAddress string, donations []givebase.Donation) error
	Append(ctx context.Context, donorAddress string, donation givebase.Donation) error
	ListByDonor(ctx context.Context, donorAddress string) ([]givebase.Donation, error)
	Close() error
}

type sqlStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS donations (
	donor_address          TEXT NOT NULL,
	campaign_id            INTEGER NOT NULL DEFAULT 0,
	campaign_title         TEXT NOT NULL DEFAULT '',
	campaign_emoji         TEXT NOT NULL DEFAULT '',
	amount                 TEXT NOT NULL,
	tx_hash                TEXT NOT NULL,
	used_delegated_account INTEGER NOT NULL DEFAULT 0,
	created_at             TIMESTAMP NOT NULL,
	PRIMARY KEY (donor_address, tx_hash)
);
`

// Open connects to the mirror database. The driver is picked from the URL
// scheme: libsql:// for a hosted replica, file: for local sqlite.
func Open(databaseURL string) (Store, error) {
	var driver string
	switch {
	case strings.HasPrefix(databaseURL, "libsql://"):
		driver = "libsql"
	case strings.HasPrefix(databaseURL, "file:"):
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL: %s", databaseURL)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure mirror schema: %w", err)
	}

	return &sqlStore{db: db}, nil
}

func (s *sqlStore) ReplaceAll(ctx context.Context, donorAddress string, donations []givebase.Donation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mirror sync: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM donations WHERE donor_address = ?`, donorAddress); err != nil {
		return fmt.Errorf("clear mirror: %w", err)
	}
	for _, d := range donations {
		if err := insertDonation(ctx, tx, donorAddress, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqlStore) Append(ctx context.Context, donorAddress string, donation givebase.Donation) error {
	return insertDonation(ctx, s.db, donorAddress, donation)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertDonation(ctx context.Context, db execer, donorAddress string, d givebase.Donation) error {
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO donations
			(donor_address, campaign_id, campaign_title, campaign_emoji, amount, tx_hash, used_delegated_account, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		donorAddress, d.CampaignID, d.CampaignTitle, d.CampaignEmoji, d.Amount, d.TxHash, d.UsedDelegatedAccount, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("persist mirrored donation: %w", err)
	}
	return nil
}

func (s *sqlStore) ListByDonor(ctx context.Context, donorAddress string) ([]givebase.Donation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT campaign_id, campaign_title, campaign_emoji, amount, tx_hash, used_delegated_account, created_at
		FROM donations
		WHERE donor_address = ?
		ORDER BY created_at DESC`, donorAddress)
	if err != nil {
		return nil, fmt.Errorf("query mirror: %w", err)
	}
	defer rows.Close()

	var donations []givebase.Donation
	for rows.Next() {
		var d givebase.Donation
		if err := rows.Scan(&d.CampaignID, &d.CampaignTitle, &d.CampaignEmoji, &d.Amount, &d.TxHash, &d.UsedDelegatedAccount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mirrored donation: %w", err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
