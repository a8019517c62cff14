package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StrategyID is the identifier assigned by the remote store.
// The store emits it either as a JSON number or as a string.
type StrategyID string

// UnmarshalJSON accepts both numeric and string identifiers
func (id *StrategyID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StrategyID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid strategy id %s: %w", data, err)
	}
	*id = StrategyID(n.String())
	return nil
}

// String returns the identifier as a plain string
func (id StrategyID) String() string {
	return string(id)
}

// BlockKind distinguishes indicator blocks from order blocks
type BlockKind string

const (
	BlockKindIndicator BlockKind = "indicator"
	BlockKindOrder     BlockKind = "order"
)

// Block is an indicator or order primitive placed into a strategy.
// Order within Strategy.Blocks is evaluation order.
type Block struct {
	ID    string    `json:"id" validate:"required"`
	Label string    `json:"label" validate:"required"`
	Kind  BlockKind `json:"type,omitempty" validate:"required,oneof=indicator order"`
}

// RiskParameters holds normalized risk fractions in [0, 1]
type RiskParameters struct {
	StopLossFraction   float64 `json:"stop_loss" validate:"gte=0,lte=1"`
	TakeProfitFraction float64 `json:"take_profit" validate:"gte=0,lte=1"`
}

// Strategy is the canonical in-memory representation of a saved strategy
type Strategy struct {
	ID     StrategyID     `json:"id"`
	Name   string         `json:"name"`
	Blocks []Block        `json:"blocks"`
	Risk   RiskParameters `json:"risk"`
}

// Clone returns a copy that shares no mutable state with s
func (s Strategy) Clone() Strategy {
	c := s
	c.Blocks = append([]Block(nil), s.Blocks...)
	return c
}

// Config returns the wire representation of the strategy's composition
func (s Strategy) Config() StrategyConfig {
	blocks := append([]Block{}, s.Blocks...)
	return StrategyConfig{
		Blocks:     blocks,
		StopLoss:   s.Risk.StopLossFraction,
		TakeProfit: s.Risk.TakeProfitFraction,
	}
}

// StrategyDraft is a strategy that has not yet been assigned an id
type StrategyDraft struct {
	Name   string         `json:"name" validate:"required"`
	Blocks []Block        `json:"blocks" validate:"dive"`
	Risk   RiskParameters `json:"risk"`
}

// CreateRequest builds the remote create payload for the draft
func (d StrategyDraft) CreateRequest() CreateStrategyRequest {
	return CreateStrategyRequest{
		Name: strings.TrimSpace(d.Name),
		Config: Strategy{
			Blocks: d.Blocks,
			Risk:   d.Risk,
		}.Config(),
	}
}

// StrategyConfig is the composition as exchanged with the remote store
type StrategyConfig struct {
	Blocks     []Block `json:"blocks"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
}

// StrategyRecord is a strategy as returned by GET /strategies
type StrategyRecord struct {
	ID     StrategyID     `json:"id"`
	Name   string         `json:"name"`
	Config StrategyConfig `json:"config"`
}

// ToStrategy converts a remote record into the canonical form
func (r StrategyRecord) ToStrategy() Strategy {
	blocks := make([]Block, len(r.Config.Blocks))
	for i, b := range r.Config.Blocks {
		if b.Kind == "" {
			b.Kind = InferBlockKind(b.ID)
		}
		blocks[i] = b
	}

	return Strategy{
		ID:     r.ID,
		Name:   r.Name,
		Blocks: blocks,
		Risk: RiskParameters{
			StopLossFraction:   r.Config.StopLoss,
			TakeProfitFraction: r.Config.TakeProfit,
		},
	}
}

// InferBlockKind guesses the kind of a block saved without a type.
// Only the buy and sell palette entries are orders.
func InferBlockKind(blockID string) BlockKind {
	switch strings.ToLower(blockID) {
	case "buy", "sell":
		return BlockKindOrder
	default:
		return BlockKindIndicator
	}
}

// CreateStrategyRequest is the body of POST /strategies
type CreateStrategyRequest struct {
	Name   string         `json:"name"`
	Config StrategyConfig `json:"config"`
}

// RenameStrategyRequest is the body of PUT /strategies/{id}
type RenameStrategyRequest struct {
	Name string `json:"name"`
}

// ExportDocument is the transportable form produced by export
type ExportDocument struct {
	ID     StrategyID     `json:"id"`
	Name   string         `json:"name"`
	Config StrategyConfig `json:"config"`
}
