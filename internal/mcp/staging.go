package mcp

import (
	"sync"

	"github.com/nick-dorsch/teamtasks/pkg/models"
)

// StagingManager holds team tasks proposed by a tool session until
// create_team consumes them. It is safe for concurrent use.
type StagingManager struct {
	mu     sync.RWMutex
	staged map[string][]models.TaskRecord
}

func NewStagingManager() *StagingManager {
	return &StagingManager{
		staged: make(map[string][]models.TaskRecord),
	}
}

func (sm *StagingManager) AddTask(sessionID string, rec models.TaskRecord) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.staged[sessionID] = append(sm.staged[sessionID], rec)
	return len(sm.staged[sessionID])
}

// GetAndClear returns the session's staged tasks and forgets them.
func (sm *StagingManager) GetAndClear(sessionID string) []models.TaskRecord {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	items := sm.staged[sessionID]
	delete(sm.staged, sessionID)
	if items == nil {
		return []models.TaskRecord{}
	}
	return items
}

// Restore puts tasks back in front of anything staged since, after a
// failed commit.
func (sm *StagingManager) Restore(sessionID string, items []models.TaskRecord) {
	if len(items) == 0 {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.staged[sessionID] = append(append([]models.TaskRecord(nil), items...), sm.staged[sessionID]...)
}

func (sm *StagingManager) Peek(sessionID string) []models.TaskRecord {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return append([]models.TaskRecord{}, sm.staged[sessionID]...)
}
