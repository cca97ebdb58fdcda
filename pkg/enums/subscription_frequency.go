package enums

// SubscriptionFrequency controls how often a subscribed blend ships.
type SubscriptionFrequency string

const (
	SubscriptionFrequencyWeekly   SubscriptionFrequency = "weekly"
	SubscriptionFrequencyBiweekly SubscriptionFrequency = "biweekly"
	SubscriptionFrequencyMonthly  SubscriptionFrequency = "monthly"
)

var subscriptionFrequencies = valueSet[SubscriptionFrequency]{
	SubscriptionFrequencyWeekly,
	SubscriptionFrequencyBiweekly,
	SubscriptionFrequencyMonthly,
}

func (f SubscriptionFrequency) String() string { return string(f) }
func (f SubscriptionFrequency) IsValid() bool  { return subscriptionFrequencies.contains(f) }

// Days is the delivery interval; unknown frequencies yield 0.
func (f SubscriptionFrequency) Days() int {
	switch f {
	case SubscriptionFrequencyWeekly:
		return 7
	case SubscriptionFrequencyBiweekly:
		return 14
	case SubscriptionFrequencyMonthly:
		return 30
	}
	return 0
}

func ParseSubscriptionFrequency(value string) (SubscriptionFrequency, error) {
	return subscriptionFrequencies.parse("subscription frequency", value)
}
