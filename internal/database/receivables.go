package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/google/uuid"
)

func (q *queries) InsertReceivable(ctx context.Context, receivable *models.Receivable) error {
	if receivable.Id == "" {
		receivable.Id = uuid.New().String()
	}
	if receivable.Version == 0 {
		receivable.Version = 1
	}
	ts := now()
	receivable.CreatedAt, receivable.UpdatedAt = ts, ts

	_, err := q.db.ExecContext(ctx, queryInsertReceivable,
		receivable.Id, receivable.AllianceId, receivable.SmeltingRecordId, receivable.Reference,
		receivable.GrossWeight.String(), receivable.Rate.String(), receivable.TotalAmount.String(),
		receivable.RemainingBalance.String(), string(receivable.State), receivable.Version,
		formatTime(ts), formatTime(ts))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: smelting record %s", store.ErrDuplicateReceivable, receivable.SmeltingRecordId)
		}
		return fmt.Errorf("failed to insert receivable: %w", classify(err))
	}
	return nil
}

func (q *queries) GetReceivable(ctx context.Context, receivableId string) (*models.Receivable, error) {
	receivable, err := scanReceivable(q.db.QueryRowContext(ctx, queryGetReceivable, receivableId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receivable %s: %w", receivableId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receivable: %w", classify(err))
	}
	return receivable, nil
}

func (q *queries) GetReceivableBySmeltingRecord(ctx context.Context, recordId string) (*models.Receivable, error) {
	receivable, err := scanReceivable(q.db.QueryRowContext(ctx, queryGetReceivableBySmeltingRecord, recordId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receivable for smelting record %s: %w", recordId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receivable: %w", classify(err))
	}
	return receivable, nil
}

func (q *queries) ListPendingReceivables(ctx context.Context, allianceId string) ([]models.Receivable, error) {
	rows, err := q.db.QueryContext(ctx, queryListPendingReceivables, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending receivables: %w", classify(err))
	}
	defer rows.Close()

	var receivables []models.Receivable
	for rows.Next() {
		receivable, err := scanReceivable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receivable: %w", err)
		}
		receivables = append(receivables, *receivable)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receivables: %w", classify(err))
	}
	return receivables, nil
}

// UpdateReceivable persists RemainingBalance and State. On success the caller's
// copy is advanced to the new version.
func (q *queries) UpdateReceivable(ctx context.Context, receivable *models.Receivable, expectedVersion int64) error {
	ts := now()
	result, err := q.db.ExecContext(ctx, queryUpdateReceivable,
		receivable.RemainingBalance.String(), string(receivable.State), formatTime(ts),
		receivable.Id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update receivable: %w", classify(err))
	}
	if err := expectOneRow(result, "receivable"); err != nil {
		return err
	}
	receivable.Version = expectedVersion + 1
	receivable.UpdatedAt = ts
	return nil
}

func scanReceivable(row rowScanner) (*models.Receivable, error) {
	var r models.Receivable
	var state, createdAt, updatedAt string
	if err := row.Scan(&r.Id, &r.AllianceId, &r.SmeltingRecordId, &r.Reference, &r.GrossWeight, &r.Rate,
		&r.TotalAmount, &r.RemainingBalance, &state, &r.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.State = models.ReceivableState(state)

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
