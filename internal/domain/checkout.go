package domain

type SessionPaymentStatus string

const (
	SessionUnpaid SessionPaymentStatus = "unpaid"
	SessionPaid   SessionPaymentStatus = "paid"
	SessionFailed SessionPaymentStatus = "failed"
)

// CheckoutSession is the provider-owned payment session as seen by this
// system. Metadata is the only field trusted to carry order data.
type CheckoutSession struct {
	ID            string               `json:"id"`
	URL           string               `json:"url"`
	PaymentStatus SessionPaymentStatus `json:"payment_status"`
	AmountTotal   int64                `json:"amount_total"`
	Currency      string               `json:"currency,omitempty"`
	Metadata      map[string]string    `json:"-"`
}

// LineItem is what gets charged: catalog name, image and price.
type LineItem struct {
	Name      string
	Image     string
	UnitPrice int64
	Quantity  int64
}

type SessionRequest struct {
	LineItems        []LineItem
	Currency         string
	AllowedCountries []string
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
}
