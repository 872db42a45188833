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

// InsertSmeltingRecord stores a record and all of its bars.
func (q *queries) InsertSmeltingRecord(ctx context.Context, record *models.SmeltingRecord) error {
	if record.Id == "" {
		record.Id = uuid.New().String()
	}
	record.CreatedAt = now()
	if record.SmeltedAt.IsZero() {
		record.SmeltedAt = record.CreatedAt
	}

	_, err := q.db.ExecContext(ctx, queryInsertSmeltingRecord,
		record.Id, record.AllianceId, record.RecordNumber, formatTime(record.SmeltedAt), formatTime(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert smelting record: %w", classify(err))
	}

	for i := range record.Bars {
		bar := &record.Bars[i]
		if bar.Id == "" {
			bar.Id = uuid.New().String()
		}
		bar.SmeltingRecordId = record.Id
		if bar.BarNumber == 0 {
			bar.BarNumber = i + 1
		}
		_, err := q.db.ExecContext(ctx, queryInsertBar,
			bar.Id, bar.SmeltingRecordId, bar.BarNumber, bar.GrossWeight.String(),
			bar.FineWeight.String(), bar.Purity.String(), bar.Seal)
		if err != nil {
			return fmt.Errorf("failed to insert bar %d: %w", bar.BarNumber, classify(err))
		}
	}
	return nil
}

func (q *queries) GetSmeltingRecord(ctx context.Context, recordId string) (*models.SmeltingRecord, error) {
	var record models.SmeltingRecord
	var smeltedAt, createdAt string
	err := q.db.QueryRowContext(ctx, queryGetSmeltingRecord, recordId).
		Scan(&record.Id, &record.AllianceId, &record.RecordNumber, &smeltedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("smelting record %s: %w", recordId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get smelting record: %w", classify(err))
	}
	if record.SmeltedAt, err = parseTime(smeltedAt); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, queryListBars, recordId)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var bar models.Bar
		if err := rows.Scan(&bar.Id, &bar.SmeltingRecordId, &bar.BarNumber, &bar.GrossWeight,
			&bar.FineWeight, &bar.Purity, &bar.Seal); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		record.Bars = append(record.Bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", classify(err))
	}
	return &record, nil
}
