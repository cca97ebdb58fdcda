package enums

// SubscriptionStatus tracks whether recurring blend deliveries are scheduled.
// Cancelled is final.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

var subscriptionStatuses = valueSet[SubscriptionStatus]{
	SubscriptionStatusActive,
	SubscriptionStatusPaused,
	SubscriptionStatusCancelled,
}

func (s SubscriptionStatus) String() string { return string(s) }
func (s SubscriptionStatus) IsValid() bool  { return subscriptionStatuses.contains(s) }

func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	return subscriptionStatuses.parse("subscription status", value)
}
