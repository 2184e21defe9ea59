// Package metrics records API and domain telemetry to Prometheus or AWS
// CloudWatch.
package metrics

import (
	"time"

	"stockbrief/internal/types"
)

// Collector is every metric the service emits.
type Collector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
	RecordQuotaDecision(plan types.PlanTier, admitted bool)
	RecordReportOutcome(plan types.PlanTier, outcome string)
	RecordLedgerWriteFailure()
	RecordWebhookOutcome(eventName, outcome string)
	RecordExternalFailure(provider string)
}

// Noop discards everything. Used when METRICS_BACKEND=none.
type Noop struct{}

func (Noop) RecordRequest(string, string, string, time.Duration) {}
func (Noop) RecordQuotaDecision(types.PlanTier, bool)            {}
func (Noop) RecordReportOutcome(types.PlanTier, string)          {}
func (Noop) RecordLedgerWriteFailure()                           {}
func (Noop) RecordWebhookOutcome(string, string)                 {}
func (Noop) RecordExternalFailure(string)                        {}

// planLabel keeps the label set bounded when the plan is unknown.
func planLabel(plan types.PlanTier) string {
	if plan == "" {
		return "unknown"
	}
	return string(plan)
}

func admittedLabel(admitted bool) string {
	if admitted {
		return "admitted"
	}
	return "rejected"
}

var _ Collector = Noop{}
