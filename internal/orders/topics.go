package orders

const (
	// TopicOrderEvents feeds downstream projections (search/catalog views)
	// with the enveloped order lifecycle events.
	TopicOrderEvents = "order.events"

	// TopicOrderCancelDelay is the delay hop for timeout cancellation: the
	// message carries the order ID and an absolute due time; the cancel
	// worker consumes it and fires once the due time has passed.
	TopicOrderCancelDelay = "order.cancel.delay"
)

// Partition key = order_id so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
