// Package plans loads the static plan→feature entitlement table.
//
// The table is read once at process start into an immutable Snapshot. A
// failed load is fatal: the engine must not serve decisions against a
// partially loaded configuration. Reload is an explicit operation that
// swaps the snapshot atomically; there is no ambient file watching.
package plans

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
)

// DefaultGracePeriodDays applies when plans.json carries no
// grace_period_days field.
const DefaultGracePeriodDays = 3

// Plan is one plan's entitlement surface.
type Plan struct {
	Key               string          `json:"key"`
	Features          map[string]bool `json:"-"`
	Limits            map[string]int  `json:"limits,omitempty"`
	PriceMonthlyCents int             `json:"price_monthly_cents,omitempty"`
}

// HasFeature reports whether the plan carries the feature key.
func (p *Plan) HasFeature(key string) bool {
	if p == nil {
		return false
	}
	return p.Features[key]
}

// Snapshot is an immutable view of the loaded plan table. Safe for
// concurrent reads; never mutated after construction.
type Snapshot struct {
	plans           map[string]*Plan
	gracePeriodDays int
}

// Plan returns the named plan, or nil when unknown.
func (s *Snapshot) Plan(key string) *Plan {
	if s == nil {
		return nil
	}
	return s.plans[key]
}

// GracePeriodDays is the configured grace window length.
func (s *Snapshot) GracePeriodDays() int { return s.gracePeriodDays }

// PlanHasFeature reports whether the plan carries the feature. Unknown
// plans carry nothing.
func (s *Snapshot) PlanHasFeature(planKey, featureKey string) bool {
	return s.Plan(planKey).HasFeature(featureKey)
}

// CheapestPlanWithFeature returns the key of the least expensive plan that
// carries the feature, for "requires a higher plan" hints. Empty when none.
func (s *Snapshot) CheapestPlanWithFeature(featureKey string) string {
	if s == nil {
		return ""
	}
	best := ""
	bestPrice := 0
	for key, p := range s.plans {
		if !p.HasFeature(featureKey) {
			continue
		}
		if best == "" || p.PriceMonthlyCents < bestPrice ||
			(p.PriceMonthlyCents == bestPrice && key < best) {
			best = key
			bestPrice = p.PriceMonthlyCents
		}
	}
	return best
}

// PlanKeys returns the loaded plan keys, sorted.
func (s *Snapshot) PlanKeys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.plans))
	for k := range s.plans {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type rawConfig struct {
	GracePeriodDays *int               `json:"grace_period_days,omitempty"`
	Plans           map[string]rawPlan `json:"plans"`
}

type rawPlan struct {
	Features          []string       `json:"features"`
	Limits            map[string]int `json:"limits,omitempty"`
	PriceMonthlyCents int            `json:"price_monthly_cents,omitempty"`
}

// Parse builds a Snapshot from raw plans.json bytes.
func Parse(data []byte) (*Snapshot, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("plans: parse config: %w", err)
	}
	if len(raw.Plans) == 0 {
		return nil, fmt.Errorf("plans: config must define at least one plan")
	}

	snap := &Snapshot{
		plans:           make(map[string]*Plan, len(raw.Plans)),
		gracePeriodDays: DefaultGracePeriodDays,
	}
	if raw.GracePeriodDays != nil {
		if *raw.GracePeriodDays < 0 {
			return nil, fmt.Errorf("plans: grace_period_days must be >= 0")
		}
		snap.gracePeriodDays = *raw.GracePeriodDays
	}

	for key, rp := range raw.Plans {
		if key == "" {
			return nil, fmt.Errorf("plans: plan keys must be non-empty")
		}
		features := make(map[string]bool, len(rp.Features))
		for _, f := range rp.Features {
			if f == "" {
				return nil, fmt.Errorf("plans: plan %q has an empty feature key", key)
			}
			features[f] = true
		}
		snap.plans[key] = &Plan{
			Key:               key,
			Features:          features,
			Limits:            rp.Limits,
			PriceMonthlyCents: rp.PriceMonthlyCents,
		}
	}
	return snap, nil
}

// Load reads and parses the plan table from disk.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plans: read %s: %w", path, err)
	}
	return Parse(data)
}

// Loader owns the current snapshot and supports explicit reload.
type Loader struct {
	path string
	cur  atomic.Pointer[Snapshot]
}

// NewLoader loads the table once; a load failure is returned to the caller
// and should abort startup.
func NewLoader(path string) (*Loader, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	l := &Loader{path: path}
	l.cur.Store(snap)
	return l, nil
}

// Current returns the active snapshot.
func (l *Loader) Current() *Snapshot { return l.cur.Load() }

// Reload re-reads the table from disk and swaps it in atomically. On
// failure the previous snapshot stays active.
func (l *Loader) Reload() error {
	snap, err := Load(l.path)
	if err != nil {
		return err
	}
	l.cur.Store(snap)
	return nil
}
