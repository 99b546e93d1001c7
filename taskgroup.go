package qlite

import (
	"sync"
	"time"
)

/*
TaskGroup tracks the shared fate of one chunked cloud submission.

A circuit batch larger than the configured group size is split across
several remote tasks. The group keeps every chunk's status in one place,
folds them into a merged status the same way a grouped query does, and
records each transition in an ordered ledger so a late observer can replay
how the batch advanced.

The ledger is immutable and append-only. Observers that attach after some
chunks already finished still see the complete transition history in the
order it happened.

Use cases include:
  - Polling loops that only care about the merged status
  - Progress reporting across a chunked submission
  - Auditing when each chunk finished or failed
*/
type TaskGroup struct {
	ID           string
	TaskIDs      []string
	CreatedAt    time.Time
	LastModified time.Time
	mu           sync.RWMutex
	TTL          time.Duration

	// OnStatusChange fires outside the group lock on every recorded
	// transition.
	OnStatusChange func(taskID, from, to string)

	statuses map[string]string
	ledger   []StatusChange
}

/*
StatusChange is an immutable record of one chunk's status transition.
Each change is timestamped and numbered, allowing precise replay of how
the group evolved.
*/
type StatusChange struct {
	Timestamp time.Time
	TaskID    string
	From      string
	To        string
	Sequence  uint64
}

/*
NewTaskGroup creates a group over the task ids of one chunked submission.

Every chunk starts in the running state; UpdateStatus moves chunks forward
as query responses arrive.

Parameters:
  - id: Name of the submission the group tracks
  - taskIDs: The task ids returned for each chunk
  - ttl: Duration after which an untouched group counts as expired

Example:
    ids, err := client.SubmitTask(ctx, circuits, opts)
    group := NewTaskGroup(opts.TaskName, ids, time.Hour)
*/
func NewTaskGroup(id string, taskIDs []string, ttl time.Duration) *TaskGroup {
	statuses := make(map[string]string, len(taskIDs))
	for _, tid := range taskIDs {
		statuses[tid] = TaskStatusRunning
	}
	return &TaskGroup{
		ID:           id,
		TaskIDs:      append([]string(nil), taskIDs...),
		CreatedAt:    time.Now(),
		LastModified: time.Now(),
		TTL:          ttl,
		statuses:     statuses,
		ledger:       make([]StatusChange, 0),
	}
}

/*
UpdateStatus records a chunk's new status and notifies the callback.

Reports that repeat the current status are ignored, so a polling loop can
feed every query response through without flooding the ledger. Ids the
group does not track are ignored as well.

Parameters:
  - taskID: The chunk's task id
  - status: Its newly observed status

Thread-safe: This method uses mutual exclusion to ensure safe concurrent access.
*/
func (g *TaskGroup) UpdateStatus(taskID, status string) {
	g.mu.Lock()

	old, known := g.statuses[taskID]
	if !known || old == status {
		g.mu.Unlock()
		return
	}

	change := StatusChange{
		Timestamp: time.Now(),
		TaskID:    taskID,
		From:      old,
		To:        status,
		Sequence:  uint64(len(g.ledger)),
	}
	g.ledger = append(g.ledger, change)
	g.statuses[taskID] = status
	g.LastModified = change.Timestamp
	callback := g.OnStatusChange
	g.mu.Unlock()

	if callback != nil {
		callback(taskID, old, status)
	}
}

/*
Status returns the last recorded status of one chunk.

Parameters:
  - taskID: The chunk's task id

Returns:
  - string: The chunk's status
  - bool: Whether the group tracks this id
*/
func (g *TaskGroup) Status(taskID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	status, ok := g.statuses[taskID]
	return status, ok
}

/*
MergedStatus folds the member statuses into one: any failed chunk fails
the group, otherwise any running chunk keeps it running, otherwise the
group succeeded.

Returns:
  - string: The merged group status
*/
func (g *TaskGroup) MergedStatus() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	merged := TaskStatusSuccess
	for _, status := range g.statuses {
		switch status {
		case TaskStatusFailed:
			return TaskStatusFailed
		case TaskStatusRunning:
			merged = TaskStatusRunning
		}
	}
	return merged
}

/*
History returns the status changes recorded at or after a sequence number.
This lets observers that attach late catch up on the transitions they
missed.

Parameters:
  - sinceSequence: The sequence number to start from (0 for all history)

Returns:
  - []StatusChange: Ordered transitions since the specified sequence
*/
func (g *TaskGroup) History(sinceSequence uint64) []StatusChange {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if sinceSequence >= uint64(len(g.ledger)) {
		return []StatusChange{}
	}
	return append([]StatusChange(nil), g.ledger[sinceSequence:]...)
}

/*
IsExpired checks if the group has been idle past its TTL.

Returns:
  - bool: True if the group has expired, false otherwise

Note: A TTL of 0 or less means the group never expires.
*/
func (g *TaskGroup) IsExpired() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.TTL <= 0 {
		return false
	}
	return time.Since(g.LastModified) > g.TTL
}
