package database

import (
	"context"
	"database/sql"
	"fmt"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// AppendLedgerEntry records an immutable balance movement. Entries are never
// updated or deleted; the schema rejects both.
func (q *queries) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	entry.CreatedAt = now()

	_, err := q.db.ExecContext(ctx, queryInsertLedgerEntry,
		entry.Id, entry.AllianceId, nullString(entry.ReceivableId), nullString(entry.PaymentEventId),
		nullString(entry.CreditBalanceId), string(entry.Kind), entry.Amount.String(),
		entry.BalanceBefore.String(), entry.BalanceAfter.String(), entry.Description,
		formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", classify(err))
	}

	zap.L().Debug("Appended ledger entry",
		zap.String("entry_id", entry.Id),
		zap.String("alliance_id", entry.AllianceId),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.String()),
		zap.String("balance_before", entry.BalanceBefore.String()),
		zap.String("balance_after", entry.BalanceAfter.String()))
	return nil
}

func (q *queries) ListLedgerEntries(ctx context.Context, allianceId string, opts store.ListOptions) ([]models.LedgerEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLedgerLimit
	}
	if limit > maxLedgerLimit {
		limit = maxLedgerLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := q.db.QueryContext(ctx, queryListLedgerEntries, allianceId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", classify(err))
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var entry models.LedgerEntry
		var receivableId, paymentEventId, creditBalanceId sql.NullString
		var kind, createdAt string
		if err := rows.Scan(&entry.Id, &entry.AllianceId, &receivableId, &paymentEventId, &creditBalanceId,
			&kind, &entry.Amount, &entry.BalanceBefore, &entry.BalanceAfter, &entry.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entry.ReceivableId = receivableId.String
		entry.PaymentEventId = paymentEventId.String
		entry.CreditBalanceId = creditBalanceId.String
		entry.Kind = models.EntryKind(kind)
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", classify(err))
	}
	return entries, nil
}
