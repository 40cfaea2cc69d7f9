package core

import (
	"context"

	"github.com/PaulFidika/paywallkit/entitlements"
	"github.com/PaulFidika/paywallkit/metrics"
	"github.com/sirupsen/logrus"
)

// Gate names used for decision logging and metrics.
const (
	GateCheckout     = "checkout"
	GateFeature      = "feature"
	GateSubscription = "subscription"
)

// Decision is one gate outcome for one caller.
type Decision struct {
	Gate    string
	UserID  string
	Source  entitlements.Source
	Allowed bool
	Feature string
}

// DecisionLogger records gate decisions to an external sink.
// Implementations should be non-blocking and best-effort.
type DecisionLogger interface {
	LogDecision(ctx context.Context, d Decision)
}

// LogrusDecisionLogger writes decisions as debug entries.
type LogrusDecisionLogger struct {
	Log logrus.FieldLogger
}

func (l LogrusDecisionLogger) LogDecision(_ context.Context, d Decision) {
	log := l.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithFields(logrus.Fields{
		"gate":    d.Gate,
		"user_id": d.UserID,
		"source":  d.Source.String(),
		"allowed": d.Allowed,
		"feature": d.Feature,
	}).Debug("gate decision")
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

// RecordDecision counts the decision and hands it to the configured logger.
func (s *Service) RecordDecision(ctx context.Context, d Decision) {
	metrics.ObserveGate(d.Gate, outcome(d.Allowed))
	if s != nil && s.decisions != nil {
		s.decisions.LogDecision(ctx, d)
	}
}
