package messaging

const (
	TopicOrderCreated        = "order.created"
	TopicOrderPaymentFlagged = "order.payment_flagged"
)

// HeaderEventType names the payload schema carried by a message.
const HeaderEventType = "event-type"
