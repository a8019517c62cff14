package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/strategy-catalog/internal/model"
	"github.com/yourorg/strategy-catalog/internal/normalizer"
)

const (
	abandonedMessage = "backtest abandoned before the remote service answered"

	// publishTimeout bounds each event write
	publishTimeout = 2 * time.Second
)

// Catalog owns the backtest slots the orchestrator writes into
type Catalog interface {
	Strategy(id model.StrategyID) (model.Strategy, error)
	MarkPending(id model.StrategyID, token string) (model.Strategy, bool, error)
	SettleBacktest(id model.StrategyID, token string, update func(slot *model.BacktestSlot)) error
	AbandonBacktest(id model.StrategyID, reason string) (bool, error)
}

// Runner issues backtest and simulation requests and returns the raw
// response bodies
type Runner interface {
	RunBacktest(ctx context.Context, payload model.BacktestPayload) ([]byte, error)
	RunSimulation(ctx context.Context, payload model.BacktestPayload) ([]byte, error)
}

// EventPublisher receives settled backtests
type EventPublisher interface {
	PublishBacktestEvent(ctx context.Context, event model.BacktestEvent) error
}

// Options configures an Orchestrator
type Options struct {
	Defaults model.BacktestDefaults
	// Timeout bounds each remote request. Zero leaves requests unbounded.
	Timeout time.Duration
}

// Orchestrator runs at most one backtest per strategy at a time and writes
// normalized results into the catalog's slots
type Orchestrator struct {
	catalog   Catalog
	runner    Runner
	publisher EventPublisher
	logger    *zap.Logger
	defaults  model.BacktestDefaults
	timeout   time.Duration
	newToken  func() string
	now       func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator creates a new backtest orchestrator
func NewOrchestrator(
	catalog Catalog,
	runner Runner,
	publisher EventPublisher,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		catalog:   catalog,
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		defaults:  opts.Defaults,
		timeout:   opts.Timeout,
		newToken:  uuid.NewString,
		now:       time.Now,
	}
}

// Run starts a backtest for id and returns without waiting for it.
// started is false when a request for id is already pending; that call
// issues nothing and leaves the pending request in charge of the slot.
func (o *Orchestrator) Run(id model.StrategyID, overrides *model.BacktestOverrides) (bool, error) {
	token := o.newToken()

	strategy, started, err := o.catalog.MarkPending(id, token)
	if err != nil {
		return false, err
	}
	if !started {
		o.logger.Debug("Backtest already pending, ignoring request",
			zap.String("strategy_id", id.String()))
		return false, nil
	}

	payload := model.BuildBacktestPayload(strategy, o.defaults, overrides)

	o.logger.Info("Starting backtest",
		zap.String("strategy_id", id.String()),
		zap.String("request_token", token),
		zap.String("ticker", payload.Ticker))

	// Run in the background
	o.wg.Add(1)
	go o.execute(id, token, payload)

	return true, nil
}

// execute issues the remote request and settles the slot with its outcome
func (o *Orchestrator) execute(id model.StrategyID, token string, payload model.BacktestPayload) {
	defer o.wg.Done()

	// Detached from the caller; only the configured timeout bounds it
	ctx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	raw, runErr := o.runner.RunBacktest(ctx, payload)

	var settled model.BacktestSlot
	err := o.catalog.SettleBacktest(id, token, func(slot *model.BacktestSlot) {
		slot.RequestToken = ""
		if runErr != nil {
			slot.State = model.SlotError
			slot.Result = nil
			slot.Error = failureMessage(runErr, o.timeout)
			settled = *slot
			return
		}

		result := normalizer.Normalize(raw)
		slot.Result = &result
		if result.Status == model.ResultComplete {
			slot.State = model.SlotReady
			slot.Error = ""
		} else {
			slot.State = model.SlotError
			slot.Error = result.Error
		}
		settled = *slot
	})
	if err != nil {
		if errors.Is(err, model.ErrStaleResult) {
			o.logger.Info("Discarding stale backtest result",
				zap.String("strategy_id", id.String()),
				zap.String("request_token", token))
			return
		}
		o.logger.Error("Failed to settle backtest",
			zap.String("strategy_id", id.String()),
			zap.Error(err))
		return
	}

	if runErr != nil {
		o.logger.Error("Backtest request failed",
			zap.String("strategy_id", id.String()),
			zap.String("request_token", token),
			zap.Error(runErr))
	} else {
		o.logger.Info("Backtest settled",
			zap.String("strategy_id", id.String()),
			zap.String("state", string(settled.State)),
			zap.String("status", string(settled.Result.Status)))
	}

	event := model.BacktestEvent{
		Type:       model.EventBacktestSettled,
		StrategyID: id,
		State:      settled.State,
	}
	if settled.Result != nil {
		event.Status = settled.Result.Status
	}
	o.publish(event)
}

// Abandon moves a stuck pending backtest to Error. Its eventual response
// is discarded as stale. It reports whether a request was pending.
func (o *Orchestrator) Abandon(id model.StrategyID) (bool, error) {
	abandoned, err := o.catalog.AbandonBacktest(id, abandonedMessage)
	if err != nil || !abandoned {
		return abandoned, err
	}

	o.logger.Warn("Backtest abandoned", zap.String("strategy_id", id.String()))
	o.publish(model.BacktestEvent{
		Type:       model.EventBacktestSettled,
		StrategyID: id,
		State:      model.SlotError,
	})
	return true, nil
}

// Simulate replays the strategy over recent intraday data and waits for
// the outcome. Simulations do not touch the backtest slot, so one may run
// while a backtest is pending. A transport or non-2xx failure is returned
// as an error; a response without usable data comes back as an Incomplete
// or Failed result.
func (o *Orchestrator) Simulate(ctx context.Context, id model.StrategyID, overrides *model.BacktestOverrides) (model.SimulationResult, error) {
	strategy, err := o.catalog.Strategy(id)
	if err != nil {
		return model.SimulationResult{}, err
	}

	payload := model.BuildBacktestPayload(strategy, o.defaults, overrides)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	raw, err := o.runner.RunSimulation(ctx, payload)
	if err != nil {
		o.logger.Error("Simulation request failed",
			zap.String("strategy_id", id.String()),
			zap.Error(err))
		return model.SimulationResult{}, err
	}

	result := normalizer.NormalizeSimulation(raw)
	o.logger.Info("Simulation finished",
		zap.String("strategy_id", id.String()),
		zap.String("ticker", payload.Ticker),
		zap.String("status", string(result.Status)),
		zap.Int("points", len(result.PortfolioValue)))

	return result, nil
}

// Wait blocks until every started backtest has settled or ctx is done
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) publish(event model.BacktestEvent) {
	if o.publisher == nil {
		return
	}
	event.At = o.now()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := o.publisher.PublishBacktestEvent(ctx, event); err != nil {
		o.logger.Warn("Failed to publish backtest event",
			zap.String("strategy_id", event.StrategyID.String()),
			zap.Error(err))
	}
}

func failureMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("backtest timed out after %s", timeout)
	}
	return err.Error()
}
