package catalog

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/yourorg/strategy-catalog/internal/model"
)

// fakeRemote is an in-memory strategy store with call counters and
// optional hooks for interleaving concurrent operations
type fakeRemote struct {
	mu      sync.Mutex
	records []model.StrategyRecord
	nextID  int

	listErr   error
	renameErr error
	deleteErr error
	createErr error
	// echoCreate controls whether create returns the entity or only an ack
	echoCreate bool
	// beforeListReturn runs after the list snapshot is taken
	beforeListReturn func()
	// afterCreate runs once the record is stored, before create returns
	afterCreate func()

	listCalls   int
	renameCalls int
	deleteCalls int
	createCalls int
}

func newFakeRemote(records ...model.StrategyRecord) *fakeRemote {
	return &fakeRemote{records: records, nextID: 100, echoCreate: true}
}

func record(id, name string, blocks ...model.Block) model.StrategyRecord {
	return model.StrategyRecord{
		ID:   model.StrategyID(id),
		Name: name,
		Config: model.StrategyConfig{
			Blocks:     blocks,
			StopLoss:   0.02,
			TakeProfit: 0.05,
		},
	}
}

func (f *fakeRemote) ListStrategies(ctx context.Context) ([]model.StrategyRecord, error) {
	f.mu.Lock()
	f.listCalls++
	err := f.listErr
	out := append([]model.StrategyRecord(nil), f.records...)
	hook := f.beforeListReturn
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeRemote) CreateStrategy(ctx context.Context, req model.CreateStrategyRequest) (*model.StrategyRecord, error) {
	f.mu.Lock()
	f.createCalls++
	if f.createErr != nil {
		f.mu.Unlock()
		return nil, f.createErr
	}

	f.nextID++
	rec := model.StrategyRecord{
		ID:     model.StrategyID(strconv.Itoa(f.nextID)),
		Name:   req.Name,
		Config: req.Config,
	}
	f.records = append(f.records, rec)
	echo, hook := f.echoCreate, f.afterCreate
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !echo {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRemote) RenameStrategy(ctx context.Context, id model.StrategyID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.renameCalls++
	if f.renameErr != nil {
		return f.renameErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Name = name
			return nil
		}
	}
	return &model.RemoteError{Op: "rename strategy", StatusCode: http.StatusNotFound}
}

func (f *fakeRemote) DeleteStrategy(ctx context.Context, id model.StrategyID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return &model.RemoteError{Op: "delete strategy", StatusCode: http.StatusNotFound, Message: "Strategy not found"}
}

func (f *fakeRemote) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// recordingPublisher captures published strategy events
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.StrategyEvent
}

func (p *recordingPublisher) PublishStrategyEvent(ctx context.Context, event model.StrategyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
