package match

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/obslog"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Manager owns the in-memory match registry, keyed by opaque match IDs.
// Matches are fully independent; there is no cross-restart persistence of
// live matches. Finished matches are archived best-effort when an archive
// or repository is attached.
type Manager struct {
	mu      sync.RWMutex
	matches map[string]*Match

	suggester  Suggester
	newEngine  EngineFactory
	maxInvalid int
	events     Sink

	archive *Archive
	repo    *Repository
}

type ManagerOption func(*Manager)

func WithEvents(s Sink) ManagerOption {
	return func(m *Manager) { m.events = s }
}

func WithMaxInvalidMoves(n int) ManagerOption {
	return func(m *Manager) { m.maxInvalid = n }
}

func WithArchive(a *Archive) ManagerOption {
	return func(m *Manager) { m.archive = a }
}

func WithRepository(r *Repository) ManagerOption {
	return func(m *Manager) { m.repo = r }
}

func NewManager(suggester Suggester, newEngine EngineFactory, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		matches:    make(map[string]*Match),
		suggester:  suggester,
		newEngine:  newEngine,
		maxInvalid: 3,
		events:     noopSink{},
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Create registers a new match and starts it.
func (mgr *Manager) Create(ctx context.Context) (*Match, error) {
	m := newMatch(uuid.NewString(), mgr.newEngine, mgr.suggester, mgr.maxInvalid, mgr.events)
	if err := m.Start(); err != nil {
		return nil, err
	}
	mgr.mu.Lock()
	mgr.matches[m.ID()] = m
	mgr.mu.Unlock()
	return m, nil
}

func (mgr *Manager) Get(id string) (*Match, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m, nil
}

func (mgr *Manager) Delete(id string) {
	mgr.mu.Lock()
	delete(mgr.matches, id)
	mgr.mu.Unlock()
}

// RunCycle executes one suggestion cycle and archives the match if it
// reached a terminal state.
func (mgr *Manager) RunCycle(ctx context.Context, id string) (*CycleResult, error) {
	m, err := mgr.Get(id)
	if err != nil {
		return nil, err
	}
	res, cycleErr := m.RunSuggestionCycle(ctx)
	mgr.persistIfFinal(ctx, m)
	return res, cycleErr
}

// Play runs the match loop to completion.
func (mgr *Manager) Play(ctx context.Context, id string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	playErr := m.Play(ctx)
	mgr.persistIfFinal(ctx, m)
	return playErr
}

func (mgr *Manager) ExternalMove(ctx context.Context, id, origin, destination, promotion string) (*CycleResult, error) {
	m, err := mgr.Get(id)
	if err != nil {
		return nil, err
	}
	res, moveErr := m.ApplyExternalMove(origin, destination, promotion)
	mgr.persistIfFinal(ctx, m)
	return res, moveErr
}

func (mgr *Manager) Resign(ctx context.Context, id string) (*Outcome, error) {
	m, err := mgr.Get(id)
	if err != nil {
		return nil, err
	}
	out, resignErr := m.Resign()
	mgr.persistIfFinal(ctx, m)
	return out, resignErr
}

func (mgr *Manager) Reset(id string) error {
	m, err := mgr.Get(id)
	if err != nil {
		return err
	}
	m.Reset()
	return nil
}

func (mgr *Manager) Snapshot(id string) (arenadto.MatchSnapshot, error) {
	m, err := mgr.Get(id)
	if err != nil {
		return arenadto.MatchSnapshot{}, err
	}
	return m.Snapshot(), nil
}

// persistIfFinal writes the terminal record to the attached stores. Failures
// are logged, never propagated: archiving must not affect match flow.
func (mgr *Manager) persistIfFinal(ctx context.Context, m *Match) {
	if m == nil || !m.IsTerminal() {
		return
	}
	if mgr.archive == nil && mgr.repo == nil {
		return
	}
	rec := mgr.recordFor(m)
	if mgr.archive != nil {
		if err := mgr.archive.SaveRecord(ctx, rec); err != nil {
			obslog.L().Error("match_archive_error", zap.String("match_id", rec.ID), zap.Error(err))
		}
	}
	if mgr.repo != nil {
		if err := mgr.repo.SaveResult(ctx, rec); err != nil {
			obslog.L().Error("match_persist_error", zap.String("match_id", rec.ID), zap.Error(err))
		}
	}
}

func (mgr *Manager) recordFor(m *Match) *Record {
	snap := m.Snapshot()
	return &Record{
		ID:        snap.ID,
		Provider:  mgr.suggester.Provider(),
		Model:     mgr.suggester.Model(),
		Result:    snap.Result,
		Method:    snap.ResultMethod,
		Reason:    snap.ResultReason,
		FEN:       snap.FEN,
		MovesUCI:  snap.MovesUCI,
		MovesSAN:  snap.MovesSAN,
		StartedAt: snap.CreatedAt,
		EndedAt:   snap.UpdatedAt,
	}
}
