package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (q *queries) CreateAlliance(ctx context.Context, alliance *models.Alliance) error {
	if alliance.Id == "" {
		alliance.Id = uuid.New().String()
	}
	if alliance.Version == 0 {
		alliance.Version = 1
	}
	ts := now()
	alliance.CreatedAt, alliance.UpdatedAt = ts, ts

	_, err := q.db.ExecContext(ctx, queryInsertAlliance,
		alliance.Id, alliance.Name, alliance.Rif, alliance.DebtBalance.String(),
		alliance.Version, formatTime(ts), formatTime(ts))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateAlliance, alliance.Id)
		}
		return fmt.Errorf("failed to insert alliance: %w", classify(err))
	}

	zap.L().Debug("Created alliance",
		zap.String("alliance_id", alliance.Id),
		zap.String("name", alliance.Name))
	return nil
}

func (q *queries) GetAlliance(ctx context.Context, allianceId string) (*models.Alliance, error) {
	alliance, err := scanAlliance(q.db.QueryRowContext(ctx, queryGetAlliance, allianceId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alliance %s: %w", allianceId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alliance: %w", classify(err))
	}
	return alliance, nil
}

func (q *queries) ListAlliances(ctx context.Context) ([]models.Alliance, error) {
	rows, err := q.db.QueryContext(ctx, queryListAlliances)
	if err != nil {
		return nil, fmt.Errorf("failed to query alliances: %w", classify(err))
	}
	defer rows.Close()

	var alliances []models.Alliance
	for rows.Next() {
		alliance, err := scanAlliance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alliance: %w", err)
		}
		alliances = append(alliances, *alliance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alliances: %w", classify(err))
	}
	return alliances, nil
}

func (q *queries) UpdateAllianceDebt(ctx context.Context, allianceId string, debt decimal.Decimal, expectedVersion int64) error {
	result, err := q.db.ExecContext(ctx, queryUpdateAllianceDebt, debt.String(), formatTime(now()), allianceId, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update alliance debt: %w", classify(err))
	}
	return expectOneRow(result, "alliance debt")
}

func scanAlliance(row rowScanner) (*models.Alliance, error) {
	var alliance models.Alliance
	var createdAt, updatedAt string
	if err := row.Scan(&alliance.Id, &alliance.Name, &alliance.Rif, &alliance.DebtBalance,
		&alliance.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if alliance.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if alliance.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &alliance, nil
}
