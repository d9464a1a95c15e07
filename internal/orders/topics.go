package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderConfirmed = "order.confirmed"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderDelivered = "order.delivered"
	TopicPaymentResult  = "order.payment.result"
)

// Partition key = order_id, so all events of one order stay in sequence.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

// TopicFor maps a lifecycle event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderConfirmed:
		return TopicOrderConfirmed
	case EventOrderCancelled:
		return TopicOrderCancelled
	case EventOrderDelivered:
		return TopicOrderDelivered
	}
	return ""
}
