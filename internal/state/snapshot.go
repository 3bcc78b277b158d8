package state

import (
	"context"
	"encoding/json"
	"strings"

	"basis-sim/internal/engine"
)

const snapshotKeyPrefix = "sim:last_snapshot:"

func SnapshotKey(symbol string) string {
	return snapshotKeyPrefix + strings.ToUpper(symbol)
}

// LoadSnapshot returns the last snapshot saved for symbol. It is for
// inspection only; the engine always starts from a fresh ledger.
func LoadSnapshot(ctx context.Context, store Store, symbol string) (engine.Snapshot, bool, error) {
	if store == nil {
		return engine.Snapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, SnapshotKey(symbol))
	if err != nil {
		return engine.Snapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return engine.Snapshot{}, false, nil
	}
	var snap engine.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return engine.Snapshot{}, false, err
	}
	return snap, true, nil
}

func SaveSnapshot(ctx context.Context, store Store, snap engine.Snapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// The closed trade goes to the journal, not the kv row.
	snap.ClosedTrade = nil
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return store.Set(ctx, SnapshotKey(snap.Symbol), string(payload))
}
