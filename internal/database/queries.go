package database

const (
	// Alliance queries
	queryInsertAlliance = `
		INSERT INTO alliances (id, name, rif, debt_balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetAlliance = `
		SELECT id, name, rif, debt_balance, version, created_at, updated_at
		FROM alliances
		WHERE id = ?`

	queryListAlliances = `
		SELECT id, name, rif, debt_balance, version, created_at, updated_at
		FROM alliances
		ORDER BY name, id`

	queryUpdateAllianceDebt = `
		UPDATE alliances
		SET debt_balance = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Smelting record queries
	queryInsertSmeltingRecord = `
		INSERT INTO smelting_records (id, alliance_id, record_number, smelted_at, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertBar = `
		INSERT INTO smelting_bars (id, smelting_record_id, bar_number, gross_weight, fine_weight, purity, seal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetSmeltingRecord = `
		SELECT id, alliance_id, record_number, smelted_at, created_at
		FROM smelting_records
		WHERE id = ?`

	queryListBars = `
		SELECT id, smelting_record_id, bar_number, gross_weight, fine_weight, purity, seal
		FROM smelting_bars
		WHERE smelting_record_id = ?
		ORDER BY bar_number, id`

	// Receivable queries
	receivableColumns = `id, alliance_id, smelting_record_id, reference, gross_weight, rate,
		total_amount, remaining_balance, state, version, created_at, updated_at`

	queryInsertReceivable = `
		INSERT INTO receivables (` + receivableColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetReceivable = `
		SELECT ` + receivableColumns + `
		FROM receivables
		WHERE id = ?`

	queryGetReceivableBySmeltingRecord = `
		SELECT ` + receivableColumns + `
		FROM receivables
		WHERE smelting_record_id = ?`

	queryListPendingReceivables = `
		SELECT ` + receivableColumns + `
		FROM receivables
		WHERE alliance_id = ? AND state = 'PENDING'
		ORDER BY created_at ASC, rowid ASC`

	queryUpdateReceivable = `
		UPDATE receivables
		SET remaining_balance = ?, state = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Payment event queries
	queryInsertPaymentEvent = `
		INSERT INTO payment_events (id, alliance_id, nomenclature, gross_amount, received_at, allocated_at, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)`

	queryGetPaymentEvent = `
		SELECT id, alliance_id, nomenclature, gross_amount, received_at, allocated_at, created_at
		FROM payment_events
		WHERE id = ?`

	queryListUnallocatedPaymentEvents = `
		SELECT id, alliance_id, nomenclature, gross_amount, received_at, allocated_at, created_at
		FROM payment_events
		WHERE alliance_id = ? AND allocated_at IS NULL
		ORDER BY received_at ASC, created_at ASC, id ASC`

	queryMarkPaymentAllocated = `
		UPDATE payment_events
		SET allocated_at = ?
		WHERE id = ? AND allocated_at IS NULL`

	// Allocation queries
	queryInsertAllocation = `
		INSERT INTO allocations (id, payment_event_id, receivable_id, amount_applied, created_at)
		VALUES (?, ?, ?, ?, ?)`

	queryListAllocationsByReceivable = `
		SELECT id, payment_event_id, receivable_id, amount_applied, created_at
		FROM allocations
		WHERE receivable_id = ?
		ORDER BY created_at ASC, rowid ASC`

	// Credit balance queries
	creditColumns = `id, alliance_id, payment_event_id, original_amount, available_amount, state,
		description, version, created_at, last_used_at`

	queryInsertCreditBalance = `
		INSERT INTO credit_balances (` + creditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetCreditBalance = `
		SELECT ` + creditColumns + `
		FROM credit_balances
		WHERE id = ?`

	queryListAvailableCredits = `
		SELECT ` + creditColumns + `
		FROM credit_balances
		WHERE alliance_id = ? AND state != 'EXHAUSTED'
		ORDER BY created_at ASC, rowid ASC`

	queryUpdateCreditBalance = `
		UPDATE credit_balances
		SET available_amount = ?, state = ?, last_used_at = ?, version = version + 1
		WHERE id = ? AND version = ?`

	queryInsertCreditApplication = `
		INSERT INTO credit_applications (id, credit_balance_id, receivable_id, amount_applied, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryListCreditApplicationsByReceivable = `
		SELECT id, credit_balance_id, receivable_id, amount_applied, description, created_at
		FROM credit_applications
		WHERE receivable_id = ?
		ORDER BY created_at ASC, rowid ASC`

	// Ledger entry queries
	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (id, alliance_id, receivable_id, payment_event_id, credit_balance_id,
			kind, amount, balance_before, balance_after, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListLedgerEntries = `
		SELECT id, alliance_id, receivable_id, payment_event_id, credit_balance_id,
			kind, amount, balance_before, balance_after, description, created_at
		FROM ledger_entries
		WHERE alliance_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
)
