package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// ResultStatus tags a normalized backtest result
type ResultStatus string

const (
	ResultComplete   ResultStatus = "complete"
	ResultIncomplete ResultStatus = "incomplete"
	ResultFailed     ResultStatus = "failed"
)

// Metric is a scalar backtest metric that may be not available.
// A NotAvailable metric is never rendered as zero.
type Metric struct {
	Value     float64
	Available bool
}

// Available wraps a known metric value
func Available(v float64) Metric {
	return Metric{Value: v, Available: true}
}

// NotAvailable is the metric for an absent or non-numeric value
func NotAvailable() Metric {
	return Metric{}
}

// MarshalJSON encodes an unavailable metric as null
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Available || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null as NotAvailable
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = NotAvailable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Available(v)
	return nil
}

// BacktestResult is the canonical, internally consistent result of a backtest.
// When Status is ResultComplete the three series have equal length >= 1.
type BacktestResult struct {
	Status         ResultStatus `json:"status"`
	Timestamps     []string     `json:"timestamps"`
	MarketSeries   []float64    `json:"market_series"`
	StrategySeries []float64    `json:"strategy_series"`
	SharpeRatio    Metric       `json:"sharpe_ratio"`
	TotalReturn    Metric       `json:"total_return"`
	MaxDrawdown    Metric       `json:"max_drawdown"`
	WinRate        Metric       `json:"win_rate"`
	Error          string       `json:"error,omitempty"`
}

// SlotState is the lifecycle state of a strategy's backtest slot
type SlotState string

const (
	SlotIdle    SlotState = "idle"
	SlotPending SlotState = "pending"
	SlotReady   SlotState = "ready"
	SlotError   SlotState = "error"
)

// BacktestSlot tracks the most recent backtest of one strategy
type BacktestSlot struct {
	State        SlotState       `json:"state"`
	Result       *BacktestResult `json:"result,omitempty"`
	RequestToken string          `json:"request_token,omitempty"`
	Error        string          `json:"error,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with s
func (s BacktestSlot) Clone() BacktestSlot {
	c := s
	if s.Result != nil {
		r := *s.Result
		r.Timestamps = append([]string(nil), s.Result.Timestamps...)
		r.MarketSeries = append([]float64(nil), s.Result.MarketSeries...)
		r.StrategySeries = append([]float64(nil), s.Result.StrategySeries...)
		c.Result = &r
	}
	return c
}

// BacktestDefaults are the request fields the remote backtester expects
// that a strategy composition does not carry itself
type BacktestDefaults struct {
	Ticker    string
	MAPeriod  int
	RSIPeriod int
}

// BacktestOverrides lets a caller pick the instrument and MA window for one run
type BacktestOverrides struct {
	Ticker   string `json:"ticker"`
	MAPeriod int    `json:"ma_period"`
}

// BacktestPayload is the body of POST /backtest: the strategy's config
// merged with the derived indicator switches
type BacktestPayload struct {
	StrategyConfig
	Ticker       string `json:"ticker"`
	MAPeriod     int    `json:"ma_period,omitempty"`
	RSIPeriod    int    `json:"rsi_period,omitempty"`
	UseMACD      bool   `json:"use_macd"`
	UseBollinger bool   `json:"use_bollinger"`
}

// BuildBacktestPayload derives the backtest request for a strategy
func BuildBacktestPayload(s Strategy, defaults BacktestDefaults, overrides *BacktestOverrides) BacktestPayload {
	payload := BacktestPayload{
		StrategyConfig: s.Config(),
		Ticker:         defaults.Ticker,
		MAPeriod:       defaults.MAPeriod,
	}

	if overrides != nil {
		if t := strings.TrimSpace(overrides.Ticker); t != "" {
			payload.Ticker = strings.ToUpper(t)
		}
		if overrides.MAPeriod > 0 {
			payload.MAPeriod = overrides.MAPeriod
		}
	}

	for _, b := range s.Blocks {
		switch blockIndicator(b) {
		case "macd":
			payload.UseMACD = true
		case "bollinger":
			payload.UseBollinger = true
		case "rsi":
			payload.RSIPeriod = defaults.RSIPeriod
		}
	}

	return payload
}

// blockIndicator names the indicator a block switches on, by id first, then label
func blockIndicator(b Block) string {
	if b.Kind == BlockKindOrder {
		return ""
	}
	for _, name := range []string{b.ID, b.Label} {
		switch n := strings.ToLower(strings.TrimSpace(name)); n {
		case "macd", "bollinger", "rsi":
			return n
		}
	}
	return ""
}
