package orders

const TopicOrderPlaced = "order.placed"

// Partition key = order id, so events of one order stay in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
