package models

import (
	"context"
)

type operatorContextKey struct{}

// OperatorContext carries who triggered a ledger operation through context so
// log lines and ledger entry descriptions can name the operator without
// changing the ledger method signatures.
type OperatorContext struct {
	RequestId string // request id assigned by the HTTP adapter
	Operator  string // operator name (X-Operator header or CLI --operator)
	Source    string // "http" or "cli"
}

// WithOperatorContext attaches operator data to a context.
func WithOperatorContext(ctx context.Context, oc *OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, oc)
}

// GetOperatorContext retrieves operator data from context, or nil if absent.
func GetOperatorContext(ctx context.Context) *OperatorContext {
	oc, _ := ctx.Value(operatorContextKey{}).(*OperatorContext)
	return oc
}
