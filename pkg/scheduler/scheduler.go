// Package scheduler triggers executions of published versions on cron
// schedules.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/nodeflow/nodeflow/pkg/persistence"
	"github.com/nodeflow/nodeflow/pkg/runner"
)

// Entry binds a cron expression to a family. Each firing resolves the
// family's currently published version, so a publish or rollback between
// firings takes effect without touching the schedule.
type Entry struct {
	Schedule    string            `json:"schedule"    validate:"required"`
	FamilyID    string            `json:"family_id"   validate:"required"`
	SubNodeID   string            `json:"subnode_id,omitempty"`
	Overrides   map[string]string `json:"overrides,omitempty"`
	TriggeredBy string            `json:"triggered_by,omitempty"`
}

// ScheduledEntry is a registered entry together with the ID that removes it.
type ScheduledEntry struct {
	ID cron.EntryID `json:"id"`
	Entry
}

// Scheduler runs cron entries against the execution runner.
type Scheduler struct {
	cron        *cron.Cron
	persistence persistence.Persistence
	runner      *runner.Runner
	logger      *slog.Logger

	mu      sync.Mutex
	entries map[cron.EntryID]Entry
}

// NewScheduler creates a scheduler. Schedules use the standard five-field
// cron format.
func NewScheduler(persistence persistence.Persistence, r *runner.Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		persistence: persistence,
		runner:      r,
		logger:      logger.With("module", "scheduler"),
		entries:     make(map[cron.EntryID]Entry),
	}
}

// Add registers an entry; the returned ID removes it again. A schedule that
// does not parse is rejected before anything is registered.
func (s *Scheduler) Add(entry Entry) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(entry.Schedule, func() {
		s.fire(entry)
	})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()

	return id, nil
}

// Remove drops a previously added entry. It reports whether the ID was
// registered.
func (s *Scheduler) Remove(id cron.EntryID) bool {
	s.mu.Lock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(id)
	}

	return ok
}

// List returns the registered entries in registration order.
func (s *Scheduler) List() []ScheduledEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]ScheduledEntry, 0, len(s.entries))
	for id, entry := range s.entries {
		entries = append(entries, ScheduledEntry{ID: id, Entry: entry})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return entries
}

// Start begins firing entries on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for in-flight firings to return. Runs
// already handed to the runner continue on their own goroutines.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// fire launches one scheduled execution. A family without a published
// version is skipped, not failed; the schedule keeps firing.
func (s *Scheduler) fire(entry Entry) {
	ctx := context.Background()

	version, err := s.persistence.Versions().GetPublished(ctx, entry.FamilyID)
	if err != nil {
		if persistence.IsNotFound(err) {
			s.logger.InfoContext(ctx, "skipping schedule, no published version",
				"family_id", entry.FamilyID)

			return
		}

		s.logger.ErrorContext(ctx, "failed to load published version",
			"family_id", entry.FamilyID,
			"error", err)

		return
	}

	triggeredBy := entry.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "scheduler"
	}

	execution, err := s.runner.Execute(ctx, version.ID, runner.ExecuteOptions{
		SubNodeID:   entry.SubNodeID,
		Overrides:   entry.Overrides,
		TriggeredBy: triggeredBy,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "scheduled execution failed to start",
			"family_id", entry.FamilyID,
			"version", version.Version,
			"error", err)

		return
	}

	s.logger.InfoContext(ctx, "scheduled execution started",
		"family_id", entry.FamilyID,
		"version", version.Version,
		"execution_id", execution.ID)
}
