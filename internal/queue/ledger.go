// Package queue carries usage ledger entries that could not be written
// synchronously to an SQS queue, and replays them into the ledger.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"stockbrief/internal/types"
)

// messageVersion is bumped when LedgerEntryMessage changes incompatibly.
const messageVersion = 1

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// LedgerEntryMessage is the queued form of a usage entry.
type LedgerEntryMessage struct {
	Version    int                 `json:"version"`
	Entry      types.UsageLogEntry `json:"entry"`
	EnqueuedAt time.Time           `json:"enqueued_at"`
	TraceID    string              `json:"trace_id,omitempty"`
}

// LedgerPublisher sends entries to the replay queue.
type LedgerPublisher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewLedgerPublisher creates a publisher for queueURL.
func NewLedgerPublisher(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *LedgerPublisher {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerPublisher{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// PublishLedgerEntry queues entry for replay. The entry keeps its id, so a
// replay after a late successful write is a no-op.
func (p *LedgerPublisher) PublishLedgerEntry(ctx context.Context, entry types.UsageLogEntry) error {
	body, err := json.Marshal(LedgerEntryMessage{
		Version:    messageVersion,
		Entry:      entry,
		EnqueuedAt: p.clock.Now(),
		TraceID:    types.GetRequestID(ctx),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to marshal ledger entry: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"entry_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.ID),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue, "failed to queue ledger entry", err)
	}

	p.logger.InfoContext(ctx, "ledger entry queued",
		"queue_url", p.queueURL,
		"entry_id", entry.ID,
		"user_id", entry.UserID,
	)
	return nil
}

// LedgerAppender is the ledger write used by the replay consumer.
type LedgerAppender interface {
	Append(ctx context.Context, entry types.UsageLogEntry) error
}

// ReplayConsumer appends queued entries to the ledger.
type ReplayConsumer struct {
	ledger LedgerAppender
	logger types.Logger
}

// NewReplayConsumer creates a consumer.
func NewReplayConsumer(ledger LedgerAppender, logger types.Logger) *ReplayConsumer {
	return &ReplayConsumer{ledger: ledger, logger: logger}
}

// Handle processes an SQS batch. Messages whose append fails are reported
// as batch item failures so SQS redelivers only those.
func (c *ReplayConsumer) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range event.Records {
		if err := c.processMessage(ctx, record); err != nil {
			c.logger.Error("failed to replay ledger entry",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (c *ReplayConsumer) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg LedgerEntryMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// Permanent parse failure; retrying cannot help.
		c.logger.Error("discarding malformed ledger message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	entry := msg.Entry
	if msg.Version != messageVersion || entry.ID == "" || entry.UserID == "" || entry.Action == "" || entry.CreatedAt.IsZero() {
		c.logger.Error("discarding invalid ledger message",
			"message_id", record.MessageId,
			"version", msg.Version,
			"entry_id", entry.ID,
		)
		return nil
	}

	if err := c.ledger.Append(ctx, entry); err != nil {
		return err
	}

	c.logger.Info("ledger entry replayed",
		"entry_id", entry.ID,
		"user_id", entry.UserID,
		"trace_id", msg.TraceID,
		"queued_for", time.Since(msg.EnqueuedAt).Round(time.Second).String(),
	)
	return nil
}
