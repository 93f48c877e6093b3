package automation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
)

// Registry holds the active rule set the engine dispatches against. Reads are
// served from an in-memory index; mutations write through the repository first
// and then swap the index entry under the write lock, so a reader never
// observes a partially-updated rule. A nil repository keeps the registry
// memory-only, which the tests rely on.
type Registry struct {
	repo Repository

	mu      sync.RWMutex
	rules   map[uuid.UUID]*registeredRule
	exact   map[string][]uuid.UUID
	prefix  map[string][]uuid.UUID
	nextSeq uint64

	bookkeeping perRuleLocks
}

type registeredRule struct {
	rule models.AutomationRule
	seq  uint64
}

// perRuleLocks serializes last-run bookkeeping per rule id so concurrent
// event- and schedule-triggered runs of one rule cannot interleave writes.
type perRuleLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (p *perRuleLocks) lockFor(id uuid.UUID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = map[uuid.UUID]*sync.Mutex{}
	}
	if _, ok := p.locks[id]; !ok {
		p.locks[id] = &sync.Mutex{}
	}
	return p.locks[id]
}

// NewRegistry builds a rule registry. repo may be nil for a memory-only registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		rules:  map[uuid.UUID]*registeredRule{},
		exact:  map[string][]uuid.UUID{},
		prefix: map[string][]uuid.UUID{},
	}
}

// Load hydrates the in-memory index from the repository.
func (r *Registry) Load(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}
	rules, err := r.repo.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = map[uuid.UUID]*registeredRule{}
	r.exact = map[string][]uuid.UUID{}
	r.prefix = map[string][]uuid.UUID{}
	for i := range rules {
		r.indexLocked(rules[i])
	}
	return nil
}

// Upsert persists the rule and replaces its index entry atomically.
func (r *Registry) Upsert(ctx context.Context, rule models.AutomationRule) error {
	if rule.ID == uuid.Nil {
		return fmt.Errorf("rule id is required")
	}
	if r.repo != nil {
		if err := r.repo.Save(ctx, &rule); err != nil {
			return fmt.Errorf("save rule: %w", err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromIndexLocked(rule.ID)
	r.indexLocked(rule)
	return nil
}

// Deactivate marks the rule inactive; subsequent lookups exclude it. The index
// swap happens before Deactivate returns, so no later dispatch can fire it.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	if r.repo != nil {
		if err := r.repo.SetActive(ctx, id, false); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rules[id]
	if !ok {
		if r.repo == nil {
			return ErrRuleNotFound
		}
		return nil
	}
	r.removeFromIndexLocked(id)
	entry.rule.IsActive = false
	r.rules[id] = entry
	return nil
}

// ActiveEventRules returns active event-triggered rules whose trigger matches
// the event name (exact or prefix wildcard), in registration order.
func (r *Registry) ActiveEventRules(eventName string) []models.AutomationRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	ids = append(ids, r.exact[eventName]...)
	for prefix, bucket := range r.prefix {
		if strings.HasPrefix(eventName, prefix) {
			ids = append(ids, bucket...)
		}
	}

	matches := make([]registeredRule, 0, len(ids))
	for _, id := range ids {
		if entry, ok := r.rules[id]; ok && entry.rule.IsActive {
			matches = append(matches, *entry)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	out := make([]models.AutomationRule, len(matches))
	for i, entry := range matches {
		out[i] = entry.rule
	}
	return out
}

// ActiveScheduleRules returns all active schedule-triggered rules in
// registration order.
func (r *Registry) ActiveScheduleRules() []models.AutomationRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]registeredRule, 0, len(r.rules))
	for _, entry := range r.rules {
		if entry.rule.IsActive && entry.rule.TriggerType == enums.TriggerTypeSchedule {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]models.AutomationRule, len(entries))
	for i, entry := range entries {
		out[i] = entry.rule
	}
	return out
}

// Get returns a copy of the registered rule, active or not.
func (r *Registry) Get(id uuid.UUID) (models.AutomationRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rules[id]
	if !ok {
		return models.AutomationRule{}, false
	}
	return entry.rule, true
}

// RecordRun writes last-run bookkeeping for the rule, serialized per rule id.
func (r *Registry) RecordRun(ctx context.Context, id uuid.UUID, at time.Time, status enums.RunStatus) error {
	lock := r.bookkeeping.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if r.repo != nil {
		if err := r.repo.UpdateRunStatus(ctx, id, at, status); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.rules[id]
	if !ok {
		return nil
	}
	runAt := at
	runStatus := status
	entry.rule.LastRunAt = &runAt
	entry.rule.LastRunStatus = &runStatus
	return nil
}

// indexLocked registers the rule under the write lock. Inactive rules are
// tracked (so Get and re-activation work) but never indexed for dispatch.
func (r *Registry) indexLocked(rule models.AutomationRule) {
	r.nextSeq++
	entry := &registeredRule{rule: rule, seq: r.nextSeq}
	r.rules[rule.ID] = entry

	if !rule.IsActive || rule.TriggerType != enums.TriggerTypeEvent || rule.TriggerEvent == nil {
		return
	}
	trigger := *rule.TriggerEvent
	if prefix, ok := wildcardPrefix(trigger); ok {
		r.prefix[prefix] = append(r.prefix[prefix], rule.ID)
		return
	}
	r.exact[trigger] = append(r.exact[trigger], rule.ID)
}

func (r *Registry) removeFromIndexLocked(id uuid.UUID) {
	entry, ok := r.rules[id]
	if !ok {
		return
	}
	if entry.rule.TriggerType == enums.TriggerTypeEvent && entry.rule.TriggerEvent != nil {
		trigger := *entry.rule.TriggerEvent
		if prefix, ok := wildcardPrefix(trigger); ok {
			r.prefix[prefix] = removeID(r.prefix[prefix], id)
			if len(r.prefix[prefix]) == 0 {
				delete(r.prefix, prefix)
			}
		} else {
			r.exact[trigger] = removeID(r.exact[trigger], id)
			if len(r.exact[trigger]) == 0 {
				delete(r.exact, trigger)
			}
		}
	}
	delete(r.rules, id)
}

// wildcardPrefix reports whether the trigger is a prefix pattern such as
// "pricing.*" and returns the prefix to match ("pricing.").
func wildcardPrefix(trigger string) (string, bool) {
	if strings.HasSuffix(trigger, ".*") {
		return strings.TrimSuffix(trigger, "*"), true
	}
	return "", false
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
