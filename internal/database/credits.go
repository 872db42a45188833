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

func (q *queries) InsertCreditBalance(ctx context.Context, credit *models.CreditBalance) error {
	if credit.Id == "" {
		credit.Id = uuid.New().String()
	}
	if credit.Version == 0 {
		credit.Version = 1
	}
	credit.CreatedAt = now()

	_, err := q.db.ExecContext(ctx, queryInsertCreditBalance,
		credit.Id, credit.AllianceId, nullString(credit.PaymentEventId),
		credit.OriginalAmount.String(), credit.AvailableAmount.String(), string(credit.State),
		credit.Description, credit.Version, formatTime(credit.CreatedAt), formatNullTime(credit.LastUsedAt))
	if err != nil {
		return fmt.Errorf("failed to insert credit balance: %w", classify(err))
	}
	return nil
}

func (q *queries) GetCreditBalance(ctx context.Context, creditId string) (*models.CreditBalance, error) {
	credit, err := scanCreditBalance(q.db.QueryRowContext(ctx, queryGetCreditBalance, creditId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credit balance %s: %w", creditId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit balance: %w", classify(err))
	}
	return credit, nil
}

func (q *queries) ListAvailableCredits(ctx context.Context, allianceId string) ([]models.CreditBalance, error) {
	rows, err := q.db.QueryContext(ctx, queryListAvailableCredits, allianceId)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit balances: %w", classify(err))
	}
	defer rows.Close()

	var credits []models.CreditBalance
	for rows.Next() {
		credit, err := scanCreditBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit balance: %w", err)
		}
		credits = append(credits, *credit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit balances: %w", classify(err))
	}
	return credits, nil
}

// UpdateCreditBalance persists AvailableAmount, State and LastUsedAt. On success
// the caller's copy is advanced to the new version.
func (q *queries) UpdateCreditBalance(ctx context.Context, credit *models.CreditBalance, expectedVersion int64) error {
	result, err := q.db.ExecContext(ctx, queryUpdateCreditBalance,
		credit.AvailableAmount.String(), string(credit.State), formatNullTime(credit.LastUsedAt),
		credit.Id, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update credit balance: %w", classify(err))
	}
	if err := expectOneRow(result, "credit balance"); err != nil {
		return err
	}
	credit.Version = expectedVersion + 1
	return nil
}

func (q *queries) InsertCreditApplication(ctx context.Context, application *models.CreditApplication) error {
	if application.Id == "" {
		application.Id = uuid.New().String()
	}
	application.CreatedAt = now()

	_, err := q.db.ExecContext(ctx, queryInsertCreditApplication,
		application.Id, application.CreditBalanceId, application.ReceivableId,
		application.AmountApplied.String(), application.Description, formatTime(application.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert credit application: %w", classify(err))
	}
	return nil
}

func (q *queries) ListCreditApplicationsByReceivable(ctx context.Context, receivableId string) ([]models.CreditApplication, error) {
	rows, err := q.db.QueryContext(ctx, queryListCreditApplicationsByReceivable, receivableId)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit applications: %w", classify(err))
	}
	defer rows.Close()

	var applications []models.CreditApplication
	for rows.Next() {
		var application models.CreditApplication
		var createdAt string
		if err := rows.Scan(&application.Id, &application.CreditBalanceId, &application.ReceivableId,
			&application.AmountApplied, &application.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit application: %w", err)
		}
		if application.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit applications: %w", classify(err))
	}
	return applications, nil
}

func scanCreditBalance(row rowScanner) (*models.CreditBalance, error) {
	var c models.CreditBalance
	var paymentEventId, lastUsedAt sql.NullString
	var state, createdAt string
	if err := row.Scan(&c.Id, &c.AllianceId, &paymentEventId, &c.OriginalAmount, &c.AvailableAmount,
		&state, &c.Description, &c.Version, &createdAt, &lastUsedAt); err != nil {
		return nil, err
	}
	c.PaymentEventId = paymentEventId.String
	c.State = models.CreditState(state)

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.LastUsedAt, err = parseNullTime(lastUsedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
