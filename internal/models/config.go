package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database      DatabaseConfig
	Ledger        LedgerConfig
	Server        ServerConfig
	AlliancesFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go)
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// LedgerConfig holds the business parameters of the debt ledger
type LedgerConfig struct {
	// CollectionRate is the share of a smelting record's gross weight owed by the alliance.
	CollectionRate decimal.Decimal
	// Tolerance absorbs weighing/rounding noise when comparing amounts on credit application.
	Tolerance          decimal.Decimal
	MaxRetries         int
	RetryBackoff       time.Duration
	ReferencePrefix    string
	RecentEntriesLimit int
}

// ServerConfig holds HTTP adapter settings
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// ReconcileInterval enables the background reconciler when positive.
	ReconcileInterval time.Duration
	ReconcileDryRun   bool
}

// DefaultLedgerConfig returns the parameters used when nothing is configured.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		CollectionRate:     decimal.RequireFromString("0.35"),
		Tolerance:          decimal.RequireFromString("0.01"),
		MaxRetries:         3,
		RetryBackoff:       25 * time.Millisecond,
		ReferencePrefix:    "CVM/GGP/GPM",
		RecentEntriesLimit: 20,
	}
}
