package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings keeps all configuration options for the donation tool.
type Settings struct {
	AppEnv string

	// BackendURL is the base URL of the campaign/stats/ledger API.
	BackendURL string
	// WalletRPCURL is the JSON-RPC endpoint of the batched-calls wallet
	// provider (the account bridge, not an eth node).
	WalletRPCURL string
	// ChainRPCURL is a plain eth node used for read-only token lookups.
	ChainRPCURL string

	ChainID      uint64
	TokenAddress string

	// DatabaseURL selects the local history mirror (file: or libsql:).
	DatabaseURL string

	DailyCapUSDC int64

	PollInterval time.Duration
	PollAttempts int

	StatsRefreshInterval time.Duration
}

// Load reads settings from the environment, supporting both UPPER_CASE and
// lower_case keys. A .env file is honored when present.
func Load() Settings {
	_ = godotenv.Load(".env", ".env.local")

	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
		return def
	}
	getUint64 := func(keys []string, def uint64) uint64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
		return def
	}
	getDuration := func(keys []string, def time.Duration) time.Duration {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
			return d
		}
		return def
	}

	st := Settings{}
	st.AppEnv = get([]string{"app_env", "APP_ENV"}, "development")
	st.BackendURL = get([]string{"backend_url", "BACKEND_URL"}, "http://localhost:3000/api")
	st.WalletRPCURL = get([]string{"wallet_rpc_url", "WALLET_RPC_URL"}, "http://localhost:8575")
	st.ChainRPCURL = get([]string{"chain_rpc_url", "CHAIN_RPC_URL"}, "https://sepolia.base.org")
	st.ChainID = getUint64([]string{"chain_id", "CHAIN_ID"}, 84532)
	st.TokenAddress = get([]string{"token_address", "TOKEN_ADDRESS"}, "0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	st.DatabaseURL = get([]string{"database_url", "DATABASE_URL"}, "file:quickgive.db")
	st.DailyCapUSDC = getInt64([]string{"daily_cap_usdc", "DAILY_CAP_USDC"}, 10)
	st.PollInterval = getDuration([]string{"poll_interval", "POLL_INTERVAL"}, 2*time.Second)
	st.PollAttempts = getInt([]string{"poll_attempts", "POLL_ATTEMPTS"}, 15)
	st.StatsRefreshInterval = getDuration([]string{"stats_refresh_interval", "STATS_REFRESH_INTERVAL"}, 10*time.Second)

	return st
}
