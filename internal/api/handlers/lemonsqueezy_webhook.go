// Package handlers contains the HTTP handler implementations for the
// stockbrief API.
//
// This file implements the Lemon Squeezy webhook handler. It is NOT behind
// bearer authentication; it is called directly by Lemon Squeezy and secured
// by the X-Signature header (hex HMAC-SHA256 of the raw body).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stockbrief/internal/billing"
	"stockbrief/internal/core"
	"stockbrief/internal/external"
	"stockbrief/internal/types"
)

// maxWebhookBodySize caps a Lemon Squeezy payload (256 KB). Subscription and
// order payloads are a few kilobytes.
const maxWebhookBodySize = 256 << 10

// Webhook outcomes recorded in the webhook_events metric.
const (
	WebhookOutcomeApplied          = "applied"
	WebhookOutcomeStale            = "stale"
	WebhookOutcomeUnknownUser      = "unknown_user"
	WebhookOutcomeNoUser           = "ignored_no_user"
	WebhookOutcomeIgnoredEntity    = "ignored_entity"
	WebhookOutcomeParseFailed      = "webhook_parse_failed"
	WebhookOutcomeReadFailed       = "read_failed"
	WebhookOutcomeSignatureInvalid = "signature_invalid"
	WebhookOutcomeStoreError       = "store_error"
)

// SubscriptionWriter is the subset of the plan store the webhook needs.
// db.ProfileRepo implements it.
type SubscriptionWriter interface {
	ApplySubscription(ctx context.Context, upd types.SubscriptionUpdate) (types.UpdateOutcome, error)
}

// WebhookRecorder records webhook outcomes.
type WebhookRecorder interface {
	RecordWebhookOutcome(eventName, outcome string)
}

// SubscriptionEvent is the canonical form of a Lemon Squeezy event. Every
// payload shape is reduced to this by normalizeLemonSqueezyEvent before any
// business rule runs.
type SubscriptionEvent struct {
	EventName      string
	UserID         string
	Kind           types.EntityKind
	SubscriptionID string
	Status         string
	Label          string
	EventAt        *time.Time
}

// LemonSqueezyWebhookHandler reconciles plan state from billing events.
type LemonSqueezyWebhookHandler struct {
	verifier external.WebhookVerifier
	profiles SubscriptionWriter
	secret   types.SecretString
	metrics  WebhookRecorder
	logger   *slog.Logger
}

// NewLemonSqueezyWebhookHandler creates the handler. An empty secret disables
// signature verification, which the config loader only permits locally.
func NewLemonSqueezyWebhookHandler(
	verifier external.WebhookVerifier,
	profiles SubscriptionWriter,
	secret types.SecretString,
	metrics WebhookRecorder,
	logger *slog.Logger,
) *LemonSqueezyWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if secret.IsEmpty() {
		logger.Warn("LEMONSQUEEZY_WEBHOOK_SECRET is not set; webhook signatures are not verified")
	}
	return &LemonSqueezyWebhookHandler{
		verifier: verifier,
		profiles: profiles,
		secret:   secret,
		metrics:  metrics,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. It is public (no bearer auth).
func (h *LemonSqueezyWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/lemonsqueezy-webhook", h.Handle)
}

// Handle processes one webhook delivery:
//  1. Reads the body (capped at 256 KB).
//  2. Verifies X-Signature when a secret is configured; a mismatch is a 401.
//  3. Normalizes the payload into a SubscriptionEvent.
//  4. Derives the plan and writes it through ApplySubscription.
//  5. Acknowledges with 200 regardless of the internal outcome, so the
//     provider does not retry deliveries that would fail the same way.
func (h *LemonSqueezyWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		h.record("", WebhookOutcomeReadFailed)
		h.ack(w, r)
		return
	}

	if !h.secret.IsEmpty() {
		if err := h.verifier.Verify(payload, r.Header.Get("X-Signature"), h.secret.Unmask()); err != nil {
			h.logger.WarnContext(ctx, "webhook signature verification failed",
				"error", err,
				"missing", errors.Is(err, external.ErrMissingSignature),
			)
			h.record("", WebhookOutcomeSignatureInvalid)
			core.Error(w, r, types.NewAppError(types.ErrCodeAuthSignature, "invalid signature", err))
			return
		}
	}

	event, err := normalizeLemonSqueezyEvent(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to parse webhook payload",
			"error", err,
			"bytes", len(payload),
		)
		h.record("", WebhookOutcomeParseFailed)
		h.ack(w, r)
		return
	}

	outcome := h.apply(ctx, event)
	h.record(event.EventName, outcome)
	h.ack(w, r)
}

// apply runs the business rules on a normalized event and returns the
// outcome label.
func (h *LemonSqueezyWebhookHandler) apply(ctx context.Context, event SubscriptionEvent) string {
	logger := h.logger.With(
		"event_name", event.EventName,
		"user_id", event.UserID,
		"entity", string(event.Kind),
	)

	if event.UserID == "" {
		logger.InfoContext(ctx, "webhook event has no user id, ignoring")
		return WebhookOutcomeNoUser
	}
	if event.Kind != types.EntitySubscription && event.Kind != types.EntityOrder {
		logger.InfoContext(ctx, "webhook event is not about a subscription or order, ignoring")
		return WebhookOutcomeIgnoredEntity
	}
	// Profile ids are Supabase user UUIDs; anything else cannot match a row.
	if _, err := uuid.Parse(event.UserID); err != nil {
		logger.WarnContext(ctx, "webhook user id is not a valid account id")
		return WebhookOutcomeUnknownUser
	}

	plan := billing.ClassifySubscription(event.Status, event.Label)
	upd := types.SubscriptionUpdate{
		UserID:             event.UserID,
		Plan:               plan,
		SubscriptionID:     event.SubscriptionID,
		SubscriptionStatus: event.Status,
		EventAt:            event.EventAt,
	}

	outcome, err := h.profiles.ApplySubscription(ctx, upd)
	if err != nil {
		logger.ErrorContext(ctx, "failed to apply subscription event",
			"plan", string(plan),
			"error", err,
		)
		return WebhookOutcomeStoreError
	}

	switch outcome {
	case types.UpdateUnknownUser:
		logger.WarnContext(ctx, "webhook event for unknown user", "plan", string(plan))
		return WebhookOutcomeUnknownUser
	case types.UpdateStale:
		logger.InfoContext(ctx, "webhook event older than stored state", "plan", string(plan))
		return WebhookOutcomeStale
	default:
		logger.InfoContext(ctx, "subscription state applied",
			"plan", string(plan),
			"status", event.Status,
			"subscription_id", event.SubscriptionID,
		)
		return WebhookOutcomeApplied
	}
}

func (h *LemonSqueezyWebhookHandler) record(eventName, outcome string) {
	if h.metrics == nil {
		return
	}
	if eventName == "" {
		eventName = "unknown"
	}
	h.metrics.RecordWebhookOutcome(eventName, outcome)
}

func (h *LemonSqueezyWebhookHandler) ack(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}

// ---------------------------------------------------------------------------
// Payload normalization
// ---------------------------------------------------------------------------

// lemonSqueezyPayload is the subset of the Lemon Squeezy envelope we read.
// custom_data is kept raw because it arrives either as an object or as a
// JSON-encoded string.
type lemonSqueezyPayload struct {
	Meta struct {
		EventName  string          `json:"event_name"`
		CustomData json.RawMessage `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string                 `json:"type"`
		ID         json.RawMessage        `json:"id"`
		Attributes lemonSqueezyAttributes `json:"attributes"`
	} `json:"data"`
}

type lemonSqueezyAttributes struct {
	Status         string           `json:"status"`
	ProductName    string           `json:"product_name"`
	VariantName    string           `json:"variant_name"`
	SubscriptionID json.RawMessage  `json:"subscription_id"`
	UpdatedAt      string           `json:"updated_at"`
	FirstOrderItem *lemonSqueezyItem `json:"first_order_item"`
}

type lemonSqueezyItem struct {
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
}

// normalizeLemonSqueezyEvent reduces a raw payload to a SubscriptionEvent.
// Only malformed JSON is an error; missing fields produce empty values that
// the business rules treat as no-ops.
func normalizeLemonSqueezyEvent(payload []byte) (SubscriptionEvent, error) {
	var p lemonSqueezyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return SubscriptionEvent{}, err
	}

	attrs := p.Data.Attributes
	event := SubscriptionEvent{
		EventName: strings.TrimSpace(p.Meta.EventName),
		UserID:    customDataUserID(p.Meta.CustomData),
		Kind:      entityKind(p.Data.Type, p.Meta.EventName),
		Status:    strings.ToLower(strings.TrimSpace(attrs.Status)),
		Label:     itemLabel(attrs),
		EventAt:   parseEventTime(attrs.UpdatedAt),
	}

	switch event.Kind {
	case types.EntitySubscription:
		event.SubscriptionID = rawID(p.Data.ID)
	case types.EntityOrder:
		event.SubscriptionID = rawID(attrs.SubscriptionID)
	}
	return event, nil
}

// customDataUserID reads the user id from meta.custom_data, which is either
// {"user_id": "..."} or the same object encoded as a JSON string.
func customDataUserID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"user_id", "userId"} {
		if v, ok := fields[key]; ok {
			if id := rawID(v); id != "" {
				return id
			}
		}
	}
	return ""
}

// entityKind classifies by data.type, falling back to the event name prefix.
func entityKind(dataType, eventName string) types.EntityKind {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "subscriptions", "subscription":
		return types.EntitySubscription
	case "orders", "order":
		return types.EntityOrder
	case "":
		switch {
		case strings.HasPrefix(eventName, "subscription_"):
			return types.EntitySubscription
		case strings.HasPrefix(eventName, "order_"):
			return types.EntityOrder
		}
	}
	return types.EntityOther
}

// itemLabel joins product and variant names; orders carry them on the
// first order item.
func itemLabel(attrs lemonSqueezyAttributes) string {
	product, variant := attrs.ProductName, attrs.VariantName
	if attrs.FirstOrderItem != nil {
		if product == "" {
			product = attrs.FirstOrderItem.ProductName
		}
		if variant == "" {
			variant = attrs.FirstOrderItem.VariantName
		}
	}
	parts := make([]string, 0, 2)
	for _, s := range []string{product, variant} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// rawID accepts ids sent as either JSON strings or numbers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func parseEventTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
