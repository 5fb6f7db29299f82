package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark-ai1/Break-Management/internal/domain/breaks"
)

// AdjudicationService maps external reason selections and operator
// verdicts onto engine calls. It resolves sessions strictly by opaque
// session id; verdicts never match on subject names, which drift.
type AdjudicationService struct {
	engine *Engine
}

// NewAdjudicationService creates the workflow over the given engine.
func NewAdjudicationService(engine *Engine) *AdjudicationService {
	return &AdjudicationService{engine: engine}
}

// SubmitReason forwards a reason for a late return. Unknown sessions
// and sessions not awaiting a reason surface as denials, not crashes.
func (a *AdjudicationService) SubmitReason(ctx context.Context, sessionID, reason string) error {
	return a.engine.SubmitReason(ctx, sessionID, strings.TrimSpace(reason))
}

// Adjudicate parses an operator verdict and applies it.
// Accepted verdicts: "approve", "reject" (case-insensitive).
func (a *AdjudicationService) Adjudicate(ctx context.Context, sessionID, verdict string) error {
	parsed, err := ParseVerdict(verdict)
	if err != nil {
		return err
	}
	return a.engine.Adjudicate(ctx, sessionID, parsed)
}

// ParseVerdict converts an external verdict string to the domain type.
func ParseVerdict(verdict string) (breaks.Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(verdict)) {
	case "approve":
		return breaks.VerdictApprove, nil
	case "reject":
		return breaks.VerdictReject, nil
	default:
		return "", fmt.Errorf("%w: %q (want approve or reject)", breaks.ErrUnknownVerdict, verdict)
	}
}
