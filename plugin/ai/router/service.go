package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrygo/pharmacontrol/internal/util"
)

// Service implements RouterService on top of the rule cascade.
type Service struct {
	ruleMatcher *RuleMatcher
}

// NewService creates a new router service.
func NewService() *Service {
	return &Service{ruleMatcher: NewRuleMatcher()}
}

// ClassifyIntent classifies user intent from input text.
func (s *Service) ClassifyIntent(ctx context.Context, input string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return IntentSearchMedication, err
	}

	start := time.Now()
	intent, rule := s.ruleMatcher.Match(input)

	slog.Debug("intent classified",
		"input", util.Truncate(input, 50),
		"intent", intent,
		"rule", rule,
		"latency_us", time.Since(start).Microseconds())

	return intent, nil
}

// Ensure Service implements RouterService
var _ RouterService = (*Service)(nil)
