package model

// InFlightMessage is a query-surface snapshot of one message sitting in the
// simulated network's delivery queue (spec.md §6.1 "in_flight_messages()",
// §9 open question 4).
type InFlightMessage struct {
	MessageID    uint64
	Sender       uint32
	Target       uint32
	Type         MessageType
	DeliveryTime uint64
}
