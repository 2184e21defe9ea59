package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"stockbrief/internal/types"
)

// putTimeout bounds each PutMetricData call made from a request path.
const putTimeout = 2 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector emits each observation as a PutMetricData call.
//
// Metrics emitted:
//   - APILatency: Dims {Endpoint}, milliseconds
//   - QuotaDecision: Dims {Plan, Outcome}
//   - ReportOutcome: Dims {Plan, Outcome}
//   - LedgerWriteFailure: no dims
//   - WebhookOutcome: Dims {EventType, Outcome}
//   - ExternalAPIFailure: Dims {Provider}
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchCollector creates a collector publishing to namespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{client: client, namespace: namespace, logger: logger}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (m *CloudWatchCollector) put(name string, value float64, unit cwtypes.StandardUnit, dims ...cwtypes.Dimension) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       unit,
				Dimensions: dims,
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"metric", name,
			"error", err.Error(),
		)
	}
}

func (m *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.put(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		dim(types.DimEndpoint, method+" "+endpoint),
		dim(types.DimOutcome, status),
	)
}

func (m *CloudWatchCollector) RecordQuotaDecision(plan types.PlanTier, admitted bool) {
	m.put(types.MetricQuotaDecision, 1, cwtypes.StandardUnitCount,
		dim(types.DimPlan, planLabel(plan)),
		dim(types.DimOutcome, admittedLabel(admitted)),
	)
}

func (m *CloudWatchCollector) RecordReportOutcome(plan types.PlanTier, outcome string) {
	m.put(types.MetricReportOutcome, 1, cwtypes.StandardUnitCount,
		dim(types.DimPlan, planLabel(plan)),
		dim(types.DimOutcome, outcome),
	)
}

func (m *CloudWatchCollector) RecordLedgerWriteFailure() {
	m.put(types.MetricLedgerWriteFailure, 1, cwtypes.StandardUnitCount)
}

func (m *CloudWatchCollector) RecordWebhookOutcome(eventName, outcome string) {
	if eventName == "" {
		eventName = "unknown"
	}
	m.put(types.MetricWebhookOutcome, 1, cwtypes.StandardUnitCount,
		dim(types.DimEventType, eventName),
		dim(types.DimOutcome, outcome),
	)
}

func (m *CloudWatchCollector) RecordExternalFailure(provider string) {
	m.put(types.MetricExternalAPIFailure, 1, cwtypes.StandardUnitCount,
		dim(types.DimProvider, provider),
	)
}

var _ Collector = (*CloudWatchCollector)(nil)
