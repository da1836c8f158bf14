package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePosSession       OutboxAggregateType = "pos_session"
	AggregateSalesTransaction OutboxAggregateType = "sales_transaction"
	AggregateSkuStock         OutboxAggregateType = "sku_stock"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePosSession,
	AggregateSalesTransaction,
	AggregateSkuStock,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventSessionCompleted    OutboxEventType = "pos_session_completed"
	EventSessionVoided       OutboxEventType = "pos_session_voided"
	EventSessionExpired      OutboxEventType = "pos_session_expired"
	EventTransactionCreated  OutboxEventType = "sales_transaction_created"
	EventTransactionVoided   OutboxEventType = "sales_transaction_voided"
	EventHoldReleaseDangling OutboxEventType = "hold_release_dangling"
)

var validOutboxEventTypes = []OutboxEventType{
	EventSessionCompleted,
	EventSessionVoided,
	EventSessionExpired,
	EventTransactionCreated,
	EventTransactionVoided,
	EventHoldReleaseDangling,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
