package enums

// PaymentStatus is the gateway-reported state of a checkout session.
type PaymentStatus string

const (
	PaymentStatusOpen    PaymentStatus = "open"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusExpired PaymentStatus = "expired"
)

var paymentStatuses = valueSet[PaymentStatus]{PaymentStatusOpen, PaymentStatusPaid, PaymentStatusExpired}

func (p PaymentStatus) String() string { return string(p) }
func (p PaymentStatus) IsValid() bool  { return paymentStatuses.contains(p) }

// IsTerminal is true once the gateway will not move the session again.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusPaid || p == PaymentStatusExpired
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return paymentStatuses.parse("payment status", value)
}
