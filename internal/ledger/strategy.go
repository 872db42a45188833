package ledger

import (
	"context"
	"fmt"

	"cobranza-ledger-go/internal/models"
	"cobranza-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

// Strategy names
const (
	StrategyFIFO   = "FIFO"
	StrategyManual = "MANUAL"
)

// Target is a receivable a payment may be applied to, with the most this
// allocation may take from it.
type Target struct {
	Receivable models.Receivable
	Limit      decimal.Decimal
}

// Strategy decides which receivables a payment pays down, and in what order.
type Strategy interface {
	Name() string
	Targets(ctx context.Context, q store.Querier, allianceId string) ([]Target, error)
}

// FIFOStrategy pays the oldest pending receivables first.
type FIFOStrategy struct{}

func (FIFOStrategy) Name() string { return StrategyFIFO }

func (FIFOStrategy) Targets(ctx context.Context, q store.Querier, allianceId string) ([]Target, error) {
	receivables, err := q.ListPendingReceivables(ctx, allianceId)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(receivables))
	for _, r := range receivables {
		if !r.RemainingBalance.IsPositive() {
			continue
		}
		targets = append(targets, Target{Receivable: r, Limit: r.RemainingBalance})
	}
	return targets, nil
}

// Selection caps how much of a payment one receivable receives.
type Selection struct {
	ReceivableId string          `json:"receivable_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// ManualStrategy pays the selected receivables in the given order, each up to
// its cap. Whatever is left becomes credit.
type ManualStrategy struct {
	Selections []Selection
}

func (ManualStrategy) Name() string { return StrategyManual }

func (m ManualStrategy) Targets(ctx context.Context, q store.Querier, allianceId string) ([]Target, error) {
	if len(m.Selections) == 0 {
		return nil, fmt.Errorf("%w: manual allocation needs at least one receivable", store.ErrInvalidArgument)
	}

	seen := make(map[string]bool, len(m.Selections))
	targets := make([]Target, 0, len(m.Selections))
	for _, sel := range m.Selections {
		if seen[sel.ReceivableId] {
			return nil, fmt.Errorf("%w: receivable %s selected more than once", store.ErrInvalidArgument, sel.ReceivableId)
		}
		seen[sel.ReceivableId] = true

		if !sel.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: cap %s for receivable %s", store.ErrInvalidAmount, sel.Amount.String(), sel.ReceivableId)
		}

		r, err := q.GetReceivable(ctx, sel.ReceivableId)
		if err != nil {
			return nil, err
		}
		if r.AllianceId != allianceId {
			return nil, fmt.Errorf("%w: receivable %s belongs to alliance %s, not %s",
				store.ErrAllianceMismatch, r.Id, r.AllianceId, allianceId)
		}
		if !r.IsPending() {
			return nil, fmt.Errorf("%w: receivable %s", store.ErrAlreadySettled, r.Id)
		}

		targets = append(targets, Target{Receivable: *r, Limit: decimal.Min(sel.Amount, r.RemainingBalance)})
	}
	return targets, nil
}

// StrategyFor resolves a strategy from its name and optional selections.
func StrategyFor(name string, selections []Selection) (Strategy, error) {
	switch name {
	case "":
		if len(selections) > 0 {
			return ManualStrategy{Selections: selections}, nil
		}
		return FIFOStrategy{}, nil
	case StrategyFIFO:
		if len(selections) > 0 {
			return nil, fmt.Errorf("%w: FIFO allocation does not take selections", store.ErrInvalidArgument)
		}
		return FIFOStrategy{}, nil
	case StrategyManual:
		return ManualStrategy{Selections: selections}, nil
	default:
		return nil, fmt.Errorf("%w: unknown allocation strategy %q", store.ErrInvalidArgument, name)
	}
}

type planLine struct {
	receivable models.Receivable
	before     decimal.Decimal
	apply      decimal.Decimal
	after      decimal.Decimal
	settles    bool
}

type allocationPlan struct {
	lines    []planLine
	applied  decimal.Decimal
	overflow decimal.Decimal
	settled  int
}

// planAllocation walks the targets in order, applying min(remaining, limit) to
// each until the amount runs out. It does not touch storage, so allocation and
// preview share it.
func planAllocation(amount decimal.Decimal, targets []Target) allocationPlan {
	plan := allocationPlan{applied: decimal.Zero}
	remaining := amount

	for _, target := range targets {
		if !remaining.IsPositive() {
			break
		}
		limit := decimal.Min(target.Limit, target.Receivable.RemainingBalance)
		if !limit.IsPositive() {
			continue
		}

		apply := decimal.Min(remaining, limit)
		after := target.Receivable.RemainingBalance.Sub(apply)
		line := planLine{
			receivable: target.Receivable,
			before:     target.Receivable.RemainingBalance,
			apply:      apply,
			after:      after,
			settles:    !after.IsPositive(),
		}
		if line.settles {
			plan.settled++
		}
		plan.lines = append(plan.lines, line)
		plan.applied = plan.applied.Add(apply)
		remaining = remaining.Sub(apply)
	}

	plan.overflow = decimal.Max(remaining, decimal.Zero)
	return plan
}

func (l planLine) toAllocationLine(allocationId string) models.AllocationLine {
	return models.AllocationLine{
		AllocationId:  allocationId,
		ReceivableId:  l.receivable.Id,
		Reference:     l.receivable.Reference,
		BalanceBefore: l.before,
		Applied:       l.apply,
		BalanceAfter:  l.after,
		Settled:       l.settles,
	}
}
