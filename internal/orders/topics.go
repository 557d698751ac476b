package orders

const (
	TopicOrderCreated   = "order.created"
	TopicOrderCancelled = "order.cancelled"
)

// Partition key = order number so every event of one order keeps its order.
func PartitionKey(orderNumber string) []byte { return []byte(orderNumber) }
