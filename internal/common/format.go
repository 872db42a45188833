package common

import (
	"fmt"
	"io"
	"strings"

	"cobranza-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	// Report widths
	DefaultWidth = 80
	WideWidth    = 100

	TimestampLayout = "2006-01-02 15:04:05"
)

// Grams renders a gold amount with two decimals and its unit.
func Grams(amount decimal.Decimal) string {
	return amount.StringFixed(2) + " g"
}

// Report writes the box-drawn text reports of the CLI tools.
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer, width int) *Report {
	return &Report{w: w, width: width}
}

// Header prints the report title between double rules.
func (r *Report) Header(title string) {
	fmt.Fprintln(r.w, "\n"+strings.Repeat("=", r.width))
	fmt.Fprintln(r.w, title)
	fmt.Fprintln(r.w, strings.Repeat("=", r.width))
}

// Footer closes the report with a summary line.
func (r *Report) Footer(summary string) {
	fmt.Fprintln(r.w, "\n"+strings.Repeat("=", r.width))
	fmt.Fprintln(r.w, summary)
	fmt.Fprintln(r.w, strings.Repeat("=", r.width)+"\n")
}

// Rule prints a closing rule without a summary.
func (r *Report) Rule() {
	fmt.Fprintln(r.w, "\n"+strings.Repeat("=", r.width))
}

// Section opens a titled block with optional detail lines.
func (r *Report) Section(title string, details ...string) {
	fmt.Fprintf(r.w, "\n┌─ %s\n", title)
	for _, d := range details {
		fmt.Fprintf(r.w, "│  %s\n", d)
	}
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))
}

func (r *Report) AllianceRow(a models.Alliance, isLast bool) {
	fmt.Fprintf(r.w, "%s %-20s %-30s debt: %14s (v%d)\n",
		branch(isLast), a.Id, a.Name, Grams(a.DebtBalance), a.Version)
}

func (r *Report) ReceivableRow(rec models.Receivable, isLast bool) {
	reference := rec.Reference
	if reference == "" {
		reference = "none"
	}
	fmt.Fprintf(r.w, "%s %-24s %14s of %14s (v%d, created %s)\n",
		branch(isLast), reference, Grams(rec.RemainingBalance), Grams(rec.TotalAmount),
		rec.Version, rec.CreatedAt.Format(TimestampLayout))
}

func (r *Report) CreditRow(c models.CreditBalance, isLast bool) {
	fmt.Fprintf(r.w, "%s %-36s %14s of %14s %s\n",
		branch(isLast), c.Id, Grams(c.AvailableAmount), Grams(c.OriginalAmount), c.State)
}

// EntryRow prints a ledger entry and its description on a continuation line.
func (r *Report) EntryRow(e models.LedgerEntry, isLast bool) {
	fmt.Fprintf(r.w, "%s %-19s %-20s %14s  %s -> %s\n",
		branch(isLast), e.CreatedAt.Format(TimestampLayout), e.Kind, Grams(e.Amount),
		e.BalanceBefore.StringFixed(2), e.BalanceAfter.StringFixed(2))
	fmt.Fprintf(r.w, "%s   %s\n", continuation(isLast), e.Description)
}

func (r *Report) CorrectionRow(c models.DebtCorrection, isLast bool) {
	fmt.Fprintf(r.w, "%s %-20s %14s -> %14s (%s)\n",
		branch(isLast), c.AllianceId, Grams(c.Before), Grams(c.After), c.Difference.StringFixed(2))
}

func branch(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

func continuation(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}
