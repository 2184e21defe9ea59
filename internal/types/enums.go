package types

// PlanTier identifies the subscription plan of an account. Stored values are
// free-form text; readers go through billing.NormalizePlan before comparing.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPlus PlanTier = "plus"
	PlanPro  PlanTier = "pro"
)

// String returns the stored representation of the plan.
func (p PlanTier) String() string { return string(p) }

// SubscriptionStatus mirrors the status strings Lemon Squeezy attaches to
// subscription and order payloads.
type SubscriptionStatus string

const (
	SubStatusOnTrial   SubscriptionStatus = "on_trial"
	SubStatusActive    SubscriptionStatus = "active"
	SubStatusPaused    SubscriptionStatus = "paused"
	SubStatusPastDue   SubscriptionStatus = "past_due"
	SubStatusUnpaid    SubscriptionStatus = "unpaid"
	SubStatusCancelled SubscriptionStatus = "cancelled"
	SubStatusExpired   SubscriptionStatus = "expired"
	SubStatusPaid      SubscriptionStatus = "paid"
	SubStatusRefunded  SubscriptionStatus = "refunded"
)

// UsageAction tags a usage ledger entry with the billable operation.
type UsageAction string

const (
	// ActionCompanyIntro is one generated company research report.
	ActionCompanyIntro UsageAction = "company_intro"
)

// PromptVariant selects the instruction template for the model call.
type PromptVariant string

const (
	// PromptResearchBrief is the constrained educational brief. It must not
	// contain valuation, price targets, or buy/sell language.
	PromptResearchBrief PromptVariant = "research_brief"
	// PromptInstitutionalMemo is the full investment memo for pro accounts.
	PromptInstitutionalMemo PromptVariant = "institutional_memo"
)

// EntityKind classifies the object a billing webhook refers to.
type EntityKind string

const (
	EntitySubscription EntityKind = "subscription"
	EntityOrder        EntityKind = "order"
	EntityOther        EntityKind = "other"
)

// UpdateOutcome reports what a conditional subscription write did.
type UpdateOutcome string

const (
	UpdateApplied     UpdateOutcome = "applied"
	UpdateStale       UpdateOutcome = "stale"
	UpdateUnknownUser UpdateOutcome = "unknown_user"
)
