package model

// SimulationResult is the canonical outcome of an intraday replay of a
// strategy. When Status is ResultComplete both series have equal length >= 1.
type SimulationResult struct {
	Status         ResultStatus `json:"status"`
	Timestamps     []string     `json:"timestamps"`
	PortfolioValue []float64    `json:"portfolio_value"`
	Error          string       `json:"error,omitempty"`
}
