package names

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shiftsync/internal/logging"
	"shiftsync/internal/shift"
)

// Pending lists unmapped provider keys seen since the last save.
type Pending struct {
	Physicians []string
	MLPs       []string
}

// Empty reports whether nothing is pending.
func (p Pending) Empty() bool {
	return len(p.Physicians) == 0 && len(p.MLPs) == 0
}

// Normalizer standardizes person names against the legend.
type Normalizer struct {
	store  LegendStore
	logger *slog.Logger

	legend            Legend
	pendingPhysicians map[string]struct{}
	pendingMLPs       map[string]struct{}
}

// New loads the legend from store, seeding and persisting the default legend
// when the store has none. An existing legend is never overwritten.
func New(ctx context.Context, store LegendStore, logger *slog.Logger) (*Normalizer, error) {
	if store == nil {
		return nil, fmt.Errorf("names: legend store is required")
	}
	n := &Normalizer{
		store:             store,
		logger:            logging.NewComponentLogger(logger, "names"),
		pendingPhysicians: map[string]struct{}{},
		pendingMLPs:       map[string]struct{}{},
	}
	if err := n.load(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Normalizer) load(ctx context.Context) error {
	legend, found, err := n.store.LoadLegend(ctx)
	if err != nil {
		return fmt.Errorf("load name legend: %w", err)
	}
	if !found {
		legend = DefaultLegend()
		if err := n.store.SaveLegend(ctx, legend); err != nil {
			return fmt.Errorf("seed name legend: %w", err)
		}
		n.logger.Info("seeded default name legend",
			logging.Int("physicians", len(legend.Physicians)),
			logging.Int("mlps", len(legend.MLPs)),
			logging.String(logging.FieldEventType, "legend_seeded"),
		)
	}
	n.legend = legend.Clone()
	return nil
}

// Reload re-reads the legend from the store, keeping pending keys. It is
// used when an operator edits the legend between cycles.
func (n *Normalizer) Reload(ctx context.Context) error {
	return n.load(ctx)
}

// Standardize returns the display name for raw in the given role. Empty and
// open-slot values are returned unchanged.
func (n *Normalizer) Standardize(raw string, role shift.Role) string {
	if strings.TrimSpace(raw) == "" || raw == shift.EmptyPerson {
		return raw
	}
	key := Key(raw)
	switch role {
	case shift.RolePhysician:
		if name, ok := n.legend.Physicians[key]; ok {
			return name
		}
		n.pendingPhysicians[key] = struct{}{}
		return PhysicianPlaceholder(key)
	case shift.RoleMLP:
		if name, ok := n.legend.MLPs[key]; ok {
			return name
		}
		n.pendingMLPs[key] = struct{}{}
		return MLPPlaceholder(key)
	default:
		return TitleCase(raw)
	}
}

// Pending returns the sorted unmapped keys awaiting SaveUpdates.
func (n *Normalizer) Pending() Pending {
	return Pending{
		Physicians: sortedKeys(n.pendingPhysicians),
		MLPs:       sortedKeys(n.pendingMLPs),
	}
}

// Legend returns a copy of the current legend.
func (n *Normalizer) Legend() Legend {
	return n.legend.Clone()
}

// SaveUpdates re-reads the stored legend, adds placeholders for pending keys
// the stored copy lacks, and persists the result. Entries edited elsewhere
// are kept as stored. The merged legend becomes current even when nothing
// was pending. It returns the keys that were added.
func (n *Normalizer) SaveUpdates(ctx context.Context) (Pending, error) {
	stored, found, err := n.store.LoadLegend(ctx)
	if err != nil {
		return Pending{}, fmt.Errorf("load name legend: %w", err)
	}
	if !found {
		stored = n.legend.Clone()
	}
	next := stored.Clone()

	pending := n.Pending()
	var added Pending
	for _, key := range pending.Physicians {
		if _, ok := next.Physicians[key]; !ok {
			next.Physicians[key] = PhysicianPlaceholder(key)
			added.Physicians = append(added.Physicians, key)
		}
	}
	for _, key := range pending.MLPs {
		if _, ok := next.MLPs[key]; !ok {
			next.MLPs[key] = MLPPlaceholder(key)
			added.MLPs = append(added.MLPs, key)
		}
	}

	if !added.Empty() || !found {
		if err := n.store.SaveLegend(ctx, next); err != nil {
			return Pending{}, fmt.Errorf("save name legend: %w", err)
		}
	}
	n.legend = next
	n.pendingPhysicians = map[string]struct{}{}
	n.pendingMLPs = map[string]struct{}{}

	if !added.Empty() {
		n.logger.Info("name legend updated",
			logging.Int("physicians_added", len(added.Physicians)),
			logging.Int("mlps_added", len(added.MLPs)),
			logging.String(logging.FieldEventType, "legend_updated"),
		)
	}
	return added, nil
}
