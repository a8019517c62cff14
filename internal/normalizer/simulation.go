package normalizer

import (
	"encoding/json"
	"fmt"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// NormalizeSimulation converts a raw simulation response body into a
// SimulationResult. The timestamps and portfolio_value series follow the
// same rules as the backtest series.
func NormalizeSimulation(raw []byte) model.SimulationResult {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(sanitizeNonFinite(raw), &fields); err != nil {
		return simulationFailed(fmt.Sprintf("malformed simulation response: %v", err))
	}

	timestamps := labels(fields["timestamps"])
	portfolio := series(fields["portfolio_value"])

	n := minLen(len(timestamps), len(portfolio))
	if n == 0 {
		if msg := errorMessage(fields); msg != "" {
			return simulationFailed(msg)
		}
		r := simulationFailed("insufficient data")
		r.Status = model.ResultIncomplete
		return r
	}

	return model.SimulationResult{
		Status:         model.ResultComplete,
		Timestamps:     timestamps[:n:n],
		PortfolioValue: portfolio[:n:n],
	}
}

func simulationFailed(msg string) model.SimulationResult {
	return model.SimulationResult{
		Status:         model.ResultFailed,
		Timestamps:     []string{},
		PortfolioValue: []float64{},
		Error:          msg,
	}
}
