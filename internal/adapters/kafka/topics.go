package kafka

// Topic definitions for Kafka event streaming
const (
	// Cost events published by upstream platform services
	TopicCostEvents = "costs.events"

	// Dead-letter topic for cost events that could not be processed
	TopicCostEventsDeadLetter = "costs.events.deadletter"

	// Budget alerts published when a spend threshold is crossed
	TopicBudgetAlerts = "costs.budget_alerts"
)
