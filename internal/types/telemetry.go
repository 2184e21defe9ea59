package types

// Telemetry metric names shared by the Prometheus and CloudWatch collectors.
const (
	// Metric Names
	MetricAPILatency         = "APILatency"
	MetricQuotaDecision      = "QuotaDecision"
	MetricReportOutcome      = "ReportOutcome"
	MetricLedgerWriteFailure = "LedgerWriteFailure"
	MetricWebhookOutcome     = "WebhookOutcome"
	MetricExternalAPIFailure = "ExternalAPIFailure"

	// Dimension Keys
	DimEndpoint  = "Endpoint"
	DimPlan      = "Plan"
	DimOutcome   = "Outcome"
	DimProvider  = "Provider"
	DimEventType = "EventType"

	// Metric Namespace
	MetricNamespace = "StockBrief"
)
