package database

import (
	"context"
	"fmt"
)

// Amounts are stored as TEXT decimals so sums and comparisons never pass through
// float64. Timestamps are stored as fixed-width UTC text so they sort correctly.
var schemaStatements = []string{
	// Alliances (hot data: cached aggregate debt)
	`CREATE TABLE IF NOT EXISTS alliances (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rif TEXT NOT NULL DEFAULT '',
		debt_balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alliances_name ON alliances(name)`,

	// Smelting records and their bars (provided by the smelting collaborator)
	`CREATE TABLE IF NOT EXISTS smelting_records (
		id TEXT PRIMARY KEY,
		alliance_id TEXT NOT NULL REFERENCES alliances(id),
		record_number TEXT NOT NULL,
		smelted_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_smelting_records_alliance ON smelting_records(alliance_id)`,

	`CREATE TABLE IF NOT EXISTS smelting_bars (
		id TEXT PRIMARY KEY,
		smelting_record_id TEXT NOT NULL REFERENCES smelting_records(id),
		bar_number INTEGER NOT NULL,
		gross_weight TEXT NOT NULL,
		fine_weight TEXT NOT NULL DEFAULT '0',
		purity TEXT NOT NULL DEFAULT '0',
		seal TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_smelting_bars_record ON smelting_bars(smelting_record_id)`,

	// Receivables (actas de cobranza): one per smelting record
	`CREATE TABLE IF NOT EXISTS receivables (
		id TEXT PRIMARY KEY,
		alliance_id TEXT NOT NULL REFERENCES alliances(id),
		smelting_record_id TEXT NOT NULL UNIQUE REFERENCES smelting_records(id),
		reference TEXT NOT NULL,
		gross_weight TEXT NOT NULL,
		rate TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		remaining_balance TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('PENDING', 'SETTLED')),
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_receivables_alliance_state ON receivables(alliance_id, state, created_at)`,

	// Payment events (actas de arrime)
	`CREATE TABLE IF NOT EXISTS payment_events (
		id TEXT PRIMARY KEY,
		alliance_id TEXT NOT NULL REFERENCES alliances(id),
		nomenclature TEXT NOT NULL,
		gross_amount TEXT NOT NULL,
		received_at TEXT NOT NULL,
		allocated_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_events_alliance ON payment_events(alliance_id)`,

	// Allocation records (immutable audit of payment -> receivable)
	`CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		payment_event_id TEXT NOT NULL REFERENCES payment_events(id),
		receivable_id TEXT NOT NULL REFERENCES receivables(id),
		amount_applied TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_receivable ON allocations(receivable_id)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_payment ON allocations(payment_event_id)`,

	// Credit balances (saldos a favor)
	`CREATE TABLE IF NOT EXISTS credit_balances (
		id TEXT PRIMARY KEY,
		alliance_id TEXT NOT NULL REFERENCES alliances(id),
		payment_event_id TEXT REFERENCES payment_events(id),
		original_amount TEXT NOT NULL,
		available_amount TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('AVAILABLE', 'PARTIALLY_USED', 'EXHAUSTED')),
		description TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		last_used_at TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_balances_alliance_state ON credit_balances(alliance_id, state, created_at)`,

	`CREATE TABLE IF NOT EXISTS credit_applications (
		id TEXT PRIMARY KEY,
		credit_balance_id TEXT NOT NULL REFERENCES credit_balances(id),
		receivable_id TEXT NOT NULL REFERENCES receivables(id),
		amount_applied TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_applications_receivable ON credit_applications(receivable_id)`,

	// Ledger entries (append-only audit trail)
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		alliance_id TEXT NOT NULL REFERENCES alliances(id),
		receivable_id TEXT,
		payment_event_id TEXT,
		credit_balance_id TEXT,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_alliance ON ledger_entries(alliance_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_receivable ON ledger_entries(receivable_id)`,

	`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_update
		BEFORE UPDATE ON ledger_entries
		BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS trg_ledger_entries_no_delete
		BEFORE DELETE ON ledger_entries
		BEGIN SELECT RAISE(ABORT, 'ledger entries are append-only'); END`,
}

func (s *Service) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
