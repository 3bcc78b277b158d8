package report

import (
	"context"
	"fmt"

	"basis-sim/internal/engine"
	"basis-sim/internal/state"
)

// Store keeps the latest snapshot in the kv store and journals every closed
// trade. Tick snapshots are only saved every saveEvery ticks.
type Store struct {
	kv        state.Store
	journal   state.Journal
	saveEvery int
	ticks     int
}

func NewStore(kv state.Store, journal state.Journal, saveEvery int) *Store {
	if saveEvery <= 0 {
		saveEvery = 1
	}
	return &Store{kv: kv, journal: journal, saveEvery: saveEvery}
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Report(ctx context.Context, snap engine.Snapshot) error {
	if snap.ClosedTrade != nil && s.journal != nil {
		if err := s.journal.AppendTrade(ctx, snap.Symbol, *snap.ClosedTrade); err != nil {
			return fmt.Errorf("journal trade %s: %w", snap.ClosedTrade.ID, err)
		}
	}
	if snap.Cause == engine.CauseTick {
		s.ticks++
		if s.ticks%s.saveEvery != 0 {
			return nil
		}
	}
	return state.SaveSnapshot(ctx, s.kv, snap)
}
