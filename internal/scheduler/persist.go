package scheduler

import (
	"encoding/json"
	"time"

	"github.com/mwhitfield/loom/pkg/models"
)

// snapshotKey is the blob store key the scheduler checkpoints under.
const snapshotKey = "scheduler/state"

// snapshot is the serialized queue checkpoint written on every mutating
// operation and on progress ticks.
type snapshot struct {
	// Jobs is the live collection (queued, running, paused).
	Jobs []models.Job `json:"jobs"`
	// History holds recent terminal jobs, capped tighter than the
	// in-memory history.
	History []models.Job `json:"history"`
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// snapshotLocked captures the current state for persistence, or nil when
// persistence is disabled. Jobs are copied by value so marshaling can happen
// outside the lock. Caller must hold s.mu.
func (s *Scheduler) snapshotLocked() *snapshot {
	if !s.cfg.EnablePersistence || s.store == nil {
		return nil
	}

	snap := &snapshot{Timestamp: time.Now()}
	for _, job := range s.jobs {
		snap.Jobs = append(snap.Jobs, *job)
	}
	n := len(s.history)
	if n > s.cfg.PersistedHistoryLimit {
		n = s.cfg.PersistedHistoryLimit
	}
	for _, job := range s.history[:n] {
		snap.History = append(snap.History, *job)
	}
	return snap
}

// persist writes a snapshot to the store. Best-effort: a persistence failure
// is logged, not propagated, and the originating queue operation still
// succeeds.
func (s *Scheduler) persist(snap *snapshot) {
	if snap == nil {
		return
	}

	blob, err := json.Marshal(snap)
	if err != nil {
		s.logger.Log("[scheduler] snapshot marshal failed: %v", err)
		return
	}
	if err := s.store.Save(snapshotKey, blob); err != nil {
		s.logger.Log("[scheduler] snapshot save failed: %v", err)
	}
}

// restore rehydrates a prior snapshot at construction time. Jobs persisted
// as running re-enter the queue; their prior progress is kept for display
// but execution restarts from scratch.
func (s *Scheduler) restore() {
	blob, ok, err := s.store.Load(snapshotKey)
	if err != nil {
		s.logger.Log("[scheduler] snapshot load failed: %v", err)
		return
	}
	if !ok {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		s.logger.Log("[scheduler] snapshot decode failed: %v", err)
		return
	}

	for i := range snap.Jobs {
		job := snap.Jobs[i]
		if job.Status == models.JobStatusRunning {
			job.Status = models.JobStatusQueued
			job.StartedAt = nil
		}
		s.jobs[job.ID] = &job
	}
	for i := range snap.History {
		job := snap.History[i]
		s.history = append(s.history, &job)
	}
	// A snapshot written under a looser limit must not carry this
	// scheduler over its own bound.
	if len(s.history) > s.cfg.HistoryLimit {
		s.history = s.history[:s.cfg.HistoryLimit]
	}
	s.logger.Log("[scheduler] restored %d live jobs, %d history entries from snapshot taken %s",
		len(snap.Jobs), len(snap.History), snap.Timestamp.Format(time.RFC3339))
}
