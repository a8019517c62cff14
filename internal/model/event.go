package model

import "time"

// EventType names a catalog or backtest change published to the event bus
type EventType string

const (
	EventStrategyCreated EventType = "strategy.created"
	EventStrategyRenamed EventType = "strategy.renamed"
	EventStrategyDeleted EventType = "strategy.deleted"
	EventBacktestSettled EventType = "backtest.settled"
)

// StrategyEvent describes a confirmed change to a catalog entry
type StrategyEvent struct {
	Type       EventType  `json:"type"`
	StrategyID StrategyID `json:"strategy_id"`
	Name       string     `json:"name,omitempty"`
	At         time.Time  `json:"at"`
}

// BacktestEvent describes a backtest slot leaving the pending state
type BacktestEvent struct {
	Type       EventType    `json:"type"`
	StrategyID StrategyID   `json:"strategy_id"`
	State      SlotState    `json:"state"`
	Status     ResultStatus `json:"status,omitempty"`
	At         time.Time    `json:"at"`
}
