package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/strategy-catalog/internal/model"
	"github.com/yourorg/strategy-catalog/internal/validator"

	"go.uber.org/zap"
)

// defaultPublishTimeout bounds how long a confirmed change waits on the
// event sink
const defaultPublishTimeout = 2 * time.Second

// Remote defines the strategy store the catalog reconciles against
type Remote interface {
	ListStrategies(ctx context.Context) ([]model.StrategyRecord, error)
	// CreateStrategy returns a nil record when the store acknowledges
	// the create without echoing the entity
	CreateStrategy(ctx context.Context, req model.CreateStrategyRequest) (*model.StrategyRecord, error)
	RenameStrategy(ctx context.Context, id model.StrategyID, name string) error
	DeleteStrategy(ctx context.Context, id model.StrategyID) error
}

// EventPublisher receives confirmed catalog changes
type EventPublisher interface {
	PublishStrategyEvent(ctx context.Context, event model.StrategyEvent) error
}

type entry struct {
	strategy model.Strategy
	session  *EditSession
	slot     *model.BacktestSlot // nil until the first backtest request
}

func (e *entry) view() Entry {
	v := Entry{
		Strategy: e.strategy.Clone(),
		Session:  e.session.View(),
		Backtest: model.BacktestSlot{State: model.SlotIdle},
	}
	if e.slot != nil {
		v.Backtest = e.slot.Clone()
	}
	return v
}

// Entry is a read-only snapshot of one catalog entry
type Entry struct {
	Strategy model.Strategy     `json:"strategy"`
	Session  SessionView        `json:"session"`
	Backtest model.BacktestSlot `json:"backtest"`
}

// Store owns the ordered collection of strategies and is the single source
// of truth for their edit sessions and backtest slots. Remote calls are
// never made while holding the lock.
type Store struct {
	remote    Remote
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time

	// publishTimeout bounds each event write
	publishTimeout time.Duration

	mu      sync.RWMutex
	order   []model.StrategyID
	entries map[model.StrategyID]*entry

	// seq orders loads against creates and removes so that a list fetched
	// before a mutation cannot undo it
	seq           uint64
	lastLoadStart uint64
	loadsInFlight int
	removedAt     map[model.StrategyID]uint64
	createdAt     map[model.StrategyID]uint64
}

// NewStore creates an empty catalog backed by remote
func NewStore(remote Remote, publisher EventPublisher, logger *zap.Logger) *Store {
	return &Store{
		remote:         remote,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
		entries:        make(map[model.StrategyID]*entry),
		removedAt:      make(map[model.StrategyID]uint64),
		createdAt:      make(map[model.StrategyID]uint64),
	}
}

// Load fetches the full strategy list and replaces the catalog with it.
// Sessions and backtest slots survive for ids still present; entries for
// ids no longer listed are discarded together with any pending backtest.
func (s *Store) Load(ctx context.Context) error {
	start := s.beginLoad()

	records, err := s.remote.ListStrategies(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.endLoadLocked()

	if err != nil {
		s.logger.Error("Failed to load strategies", zap.Error(err))
		return err
	}

	// A load that started later has already been applied
	if start < s.lastLoadStart {
		s.logger.Debug("Discarding superseded strategy list", zap.Uint64("load_seq", start))
		return nil
	}
	s.lastLoadStart = start

	s.applyLocked(records, start)

	s.logger.Debug("Catalog loaded", zap.Int("strategies", len(s.order)))
	return nil
}

func (s *Store) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.loadsInFlight++
	return s.seq
}

func (s *Store) endLoadLocked() {
	s.loadsInFlight--
	if s.loadsInFlight == 0 {
		s.removedAt = make(map[model.StrategyID]uint64)
		s.createdAt = make(map[model.StrategyID]uint64)
	}
}

func (s *Store) applyLocked(records []model.StrategyRecord, start uint64) {
	order := make([]model.StrategyID, 0, len(records))
	entries := make(map[model.StrategyID]*entry, len(records))

	for _, rec := range records {
		strategy := rec.ToStrategy()
		if strategy.ID == "" {
			s.logger.Warn("Skipping strategy without id", zap.String("name", strategy.Name))
			continue
		}
		if _, dup := entries[strategy.ID]; dup {
			s.logger.Warn("Skipping duplicate strategy id", zap.String("strategy_id", strategy.ID.String()))
			continue
		}
		if removed, ok := s.removedAt[strategy.ID]; ok && removed > start {
			continue
		}

		e, ok := s.entries[strategy.ID]
		if ok {
			e.strategy = strategy
		} else {
			e = &entry{strategy: strategy, session: NewEditSession()}
		}
		entries[strategy.ID] = e
		order = append(order, strategy.ID)
	}

	// Keep strategies created after this list was requested
	for _, id := range s.order {
		created, ok := s.createdAt[id]
		if !ok || created <= start {
			continue
		}
		if _, present := entries[id]; present {
			continue
		}
		if e, ok := s.entries[id]; ok {
			entries[id] = e
			order = append(order, id)
		}
	}

	s.order = order
	s.entries = entries
}

// Rename renames a strategy on the remote store and refreshes the catalog.
// The local name only changes after the remote store confirms it.
func (s *Store) Rename(ctx context.Context, id model.StrategyID, newName string) error {
	// Reject blank names locally
	if err := validator.ValidateName(newName); err != nil {
		return err
	}
	name := strings.TrimSpace(newName)

	if !s.has(id) {
		return fmt.Errorf("rename %s: %w", id, model.ErrStrategyNotFound)
	}

	if err := s.remote.RenameStrategy(ctx, id, name); err != nil {
		s.logger.Error("Failed to rename strategy",
			zap.String("strategy_id", id.String()),
			zap.Error(err))
		return err
	}

	if err := s.Load(ctx); err != nil {
		s.logger.Warn("Failed to refresh catalog after rename, applying confirmed name",
			zap.String("strategy_id", id.String()),
			zap.Error(err))

		s.mu.Lock()
		if e, ok := s.entries[id]; ok {
			e.strategy.Name = name
		}
		s.mu.Unlock()
	}

	s.publish(ctx, model.StrategyEvent{Type: model.EventStrategyRenamed, StrategyID: id, Name: name})
	return nil
}

// Remove deletes a strategy on the remote store and drops its whole entry,
// including any in-flight backtest, once the delete is accepted
func (s *Store) Remove(ctx context.Context, id model.StrategyID) error {
	if !s.has(id) {
		return fmt.Errorf("remove %s: %w", id, model.ErrStrategyNotFound)
	}

	// Any rejection, 404 included, leaves the entry; the next load
	// reconciles an id that is really gone
	if err := s.remote.DeleteStrategy(ctx, id); err != nil {
		s.logger.Error("Failed to delete strategy",
			zap.String("strategy_id", id.String()),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.deleteLocked(id)
	s.mu.Unlock()

	s.publish(ctx, model.StrategyEvent{Type: model.EventStrategyDeleted, StrategyID: id})
	return nil
}

func (s *Store) deleteLocked(id model.StrategyID) {
	if _, ok := s.entries[id]; !ok {
		return
	}

	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}

	s.seq++
	delete(s.createdAt, id)
	if s.loadsInFlight > 0 {
		s.removedAt[id] = s.seq
	}
}

// Create saves a new strategy on the remote store and appends the entity
// it returns. The catalog never assigns ids itself.
func (s *Store) Create(ctx context.Context, draft model.StrategyDraft) (model.Strategy, error) {
	if err := validator.ValidateDraft(&draft); err != nil {
		return model.Strategy{}, err
	}

	// Ids listed before the remote call cannot belong to the new strategy,
	// even if a concurrent load applies it before we look for it
	known := s.knownIDs()

	record, err := s.remote.CreateStrategy(ctx, draft.CreateRequest())
	if err != nil {
		s.logger.Error("Failed to create strategy", zap.String("name", draft.Name), zap.Error(err))
		return model.Strategy{}, err
	}

	var created model.Strategy
	if record == nil || record.ID == "" {
		created, err = s.adoptCreated(ctx, draft, known)
		if err != nil {
			return model.Strategy{}, err
		}
	} else {
		created = record.ToStrategy()
		s.mu.Lock()
		s.insertLocked(created)
		s.mu.Unlock()
	}

	s.publish(ctx, model.StrategyEvent{Type: model.EventStrategyCreated, StrategyID: created.ID, Name: created.Name})
	return created.Clone(), nil
}

func (s *Store) insertLocked(strategy model.Strategy) {
	if e, ok := s.entries[strategy.ID]; ok {
		e.strategy = strategy
		return
	}

	s.entries[strategy.ID] = &entry{strategy: strategy, session: NewEditSession()}
	s.order = append(s.order, strategy.ID)

	s.seq++
	if s.loadsInFlight > 0 {
		s.createdAt[strategy.ID] = s.seq
	}
}

func (s *Store) knownIDs() map[model.StrategyID]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := make(map[model.StrategyID]bool, len(s.order))
	for _, id := range s.order {
		known[id] = true
	}
	return known
}

// adoptCreated finds a strategy the remote store created without echoing
// it: the newest id, not in known, whose name matches
func (s *Store) adoptCreated(ctx context.Context, draft model.StrategyDraft, known map[model.StrategyID]bool) (model.Strategy, error) {
	if err := s.Load(ctx); err != nil {
		return model.Strategy{}, fmt.Errorf("refresh after create: %w", err)
	}

	name := strings.TrimSpace(draft.Name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		id := s.order[i]
		if known[id] {
			continue
		}
		if e := s.entries[id]; e.strategy.Name == name {
			return e.strategy.Clone(), nil
		}
	}

	return model.Strategy{}, fmt.Errorf("created strategy %q not found after refresh", name)
}

// Export serializes the strategy's current canonical form. Cached backtest
// results are not part of the document.
func (s *Store) Export(id model.StrategyID) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("export %s: %w", id, model.ErrStrategyNotFound)
	}
	doc := model.ExportDocument{
		ID:     e.strategy.ID,
		Name:   e.strategy.Name,
		Config: e.strategy.Config(),
	}
	s.mu.RUnlock()

	return json.MarshalIndent(doc, "", "  ")
}

// List returns snapshots of all entries in catalog order
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].view())
	}
	return out
}

// Get returns a snapshot of one entry
func (s *Store) Get(id model.StrategyID) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("get %s: %w", id, model.ErrStrategyNotFound)
	}
	return e.view(), nil
}

// Strategy returns a copy of the strategy stored under id
func (s *Store) Strategy(id model.StrategyID) (model.Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return model.Strategy{}, fmt.Errorf("strategy %s: %w", id, model.ErrStrategyNotFound)
	}
	return e.strategy.Clone(), nil
}

// Len returns the number of strategies in the catalog
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) has(id model.StrategyID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[id]
	return ok
}

func (s *Store) publish(ctx context.Context, event model.StrategyEvent) {
	if s.publisher == nil {
		return
	}
	event.At = s.now()

	// The change is already confirmed remotely; neither the caller's
	// cancellation nor a slow broker may hold up the response for long
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishStrategyEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish strategy event",
			zap.String("type", string(event.Type)),
			zap.String("strategy_id", event.StrategyID.String()),
			zap.Error(err))
	}
}
