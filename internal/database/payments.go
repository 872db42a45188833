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

func (q *queries) InsertPaymentEvent(ctx context.Context, event *models.PaymentEvent) error {
	if event.Id == "" {
		event.Id = uuid.New().String()
	}
	event.CreatedAt = now()
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = event.CreatedAt
	}
	event.AllocatedAt = nil

	_, err := q.db.ExecContext(ctx, queryInsertPaymentEvent,
		event.Id, event.AllianceId, event.Nomenclature, event.GrossAmount.String(),
		formatTime(event.ReceivedAt), formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert payment event: %w", classify(err))
	}
	return nil
}

func (q *queries) GetPaymentEvent(ctx context.Context, eventId string) (*models.PaymentEvent, error) {
	var event models.PaymentEvent
	var receivedAt, createdAt string
	var allocatedAt sql.NullString
	err := q.db.QueryRowContext(ctx, queryGetPaymentEvent, eventId).
		Scan(&event.Id, &event.AllianceId, &event.Nomenclature, &event.GrossAmount,
			&receivedAt, &allocatedAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment event %s: %w", eventId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment event: %w", classify(err))
	}

	if event.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if event.AllocatedAt, err = parseNullTime(allocatedAt); err != nil {
		return nil, err
	}
	return &event, nil
}

func (q *queries) ListUnallocatedPaymentEvents(ctx context.Context, allianceId string) ([]models.PaymentEvent, error) {
	rows, err := q.db.QueryContext(ctx, queryListUnallocatedPaymentEvents, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", classify(err))
	}
	defer rows.Close()

	var events []models.PaymentEvent
	for rows.Next() {
		var event models.PaymentEvent
		var receivedAt, createdAt string
		var allocatedAt sql.NullString
		if err := rows.Scan(&event.Id, &event.AllianceId, &event.Nomenclature, &event.GrossAmount,
			&receivedAt, &allocatedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment event: %w", err)
		}
		if event.ReceivedAt, err = parseTime(receivedAt); err != nil {
			return nil, err
		}
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if event.AllocatedAt, err = parseNullTime(allocatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment events: %w", classify(err))
	}
	return events, nil
}

// MarkPaymentAllocated stamps allocated_at exactly once.
func (q *queries) MarkPaymentAllocated(ctx context.Context, event *models.PaymentEvent) error {
	ts := now()
	result, err := q.db.ExecContext(ctx, queryMarkPaymentAllocated, formatTime(ts), event.Id)
	if err != nil {
		return fmt.Errorf("failed to mark payment event allocated: %w", classify(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrPaymentAlreadyAllocated, event.Id)
	}
	event.AllocatedAt = &ts
	return nil
}

func (q *queries) InsertAllocation(ctx context.Context, allocation *models.Allocation) error {
	if allocation.Id == "" {
		allocation.Id = uuid.New().String()
	}
	allocation.CreatedAt = now()

	_, err := q.db.ExecContext(ctx, queryInsertAllocation,
		allocation.Id, allocation.PaymentEventId, allocation.ReceivableId,
		allocation.AmountApplied.String(), formatTime(allocation.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", classify(err))
	}
	return nil
}

func (q *queries) ListAllocationsByReceivable(ctx context.Context, receivableId string) ([]models.Allocation, error) {
	rows, err := q.db.QueryContext(ctx, queryListAllocationsByReceivable, receivableId)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", classify(err))
	}
	defer rows.Close()

	var allocations []models.Allocation
	for rows.Next() {
		var allocation models.Allocation
		var createdAt string
		if err := rows.Scan(&allocation.Id, &allocation.PaymentEventId, &allocation.ReceivableId,
			&allocation.AmountApplied, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		if allocation.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", classify(err))
	}
	return allocations, nil
}
