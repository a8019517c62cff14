// Package normalizer turns raw backtest responses into canonical results.
//
// The remote backtester only loosely honours its contract: any field may be
// missing, the three series may differ in length, and numeric fields may be
// NaN or not numbers at all. Normalize never fails; it reports what it could
// not use through the result's status and NotAvailable metrics.
package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// Metric key aliases, in lookup order. Values are recorded as sent; unit
// conventions (fraction vs percent) are not reconciled here.
var (
	sharpeKeys      = []string{"sharpe", "sharpe_ratio"}
	totalReturnKeys = []string{"total_return", "returns"}
	drawdownKeys    = []string{"max_drawdown", "drawdown"}
	winRateKeys     = []string{"win_rate"}
)

// Normalize converts a raw backtest response body into a BacktestResult
func Normalize(raw []byte) model.BacktestResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(sanitizeNonFinite(raw), &fields); err != nil {
		return failed(fmt.Sprintf("malformed backtest response: %v", err))
	}

	timestamps := labels(fields["timestamps"])
	market := series(fields["cumulative_market"])
	strategy := series(fields["cumulative_strategy"])

	n := minLen(len(timestamps), len(market), len(strategy))
	if len(timestamps) == 0 || len(strategy) == 0 || n == 0 {
		if msg := errorMessage(fields); msg != "" {
			return failed(msg)
		}
		return incomplete()
	}

	return model.BacktestResult{
		Status:         model.ResultComplete,
		Timestamps:     timestamps[:n:n],
		MarketSeries:   market[:n:n],
		StrategySeries: strategy[:n:n],
		SharpeRatio:    metric(fields, sharpeKeys),
		TotalReturn:    metric(fields, totalReturnKeys),
		MaxDrawdown:    metric(fields, drawdownKeys),
		WinRate:        metric(fields, winRateKeys),
	}
}

func incomplete() model.BacktestResult {
	return model.BacktestResult{
		Status:         model.ResultIncomplete,
		Timestamps:     []string{},
		MarketSeries:   []float64{},
		StrategySeries: []float64{},
		Error:          "insufficient data",
	}
}

func failed(msg string) model.BacktestResult {
	r := incomplete()
	r.Status = model.ResultFailed
	r.Error = msg
	return r
}

// labels decodes the timestamp sequence. Numbers are kept as their literal
// text. The sequence ends at the first element that is neither.
func labels(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if isNull(item) {
			break
		}
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n.String())
			continue
		}
		break
	}
	return out
}

// series decodes a numeric sequence up to its first non-numeric element.
// Values are never synthesized to fill gaps.
func series(raw json.RawMessage) []float64 {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	out := make([]float64, 0, len(items))
	for _, item := range items {
		v, ok := number(item)
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// metric returns the first alias that carries a finite number
func metric(fields map[string]json.RawMessage, keys []string) model.Metric {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if v, ok := number(raw); ok {
			return model.Available(v)
		}
	}
	return model.NotAvailable()
}

func number(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// isNull reports a JSON null, which decodes into scalars without error
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || strings.TrimSpace(string(raw)) == "null"
}

func errorMessage(fields map[string]json.RawMessage) string {
	raw, ok := fields["error"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}
	return strings.TrimSpace(msg)
}

func minLen(lengths ...int) int {
	n := lengths[0]
	for _, l := range lengths[1:] {
		if l < n {
			n = l
		}
	}
	return n
}
