package qlite

import (
	"log"
	"sync"
	"time"
)

// ResultSpace handles result storage and delivery for scheduled jobs
type ResultSpace struct {
	mu      sync.RWMutex
	values  map[string]*RunResult
	waiting map[string][]chan RunResult
	groups  map[string]*BroadcastGroup
	closed  bool
	wg      sync.WaitGroup
	done    chan struct{}
}

func NewResultSpace() *ResultSpace {
	rs := &ResultSpace{
		values:  make(map[string]*RunResult),
		waiting: make(map[string][]chan RunResult),
		groups:  make(map[string]*BroadcastGroup),
		done:    make(chan struct{}),
	}

	// Start cleanup goroutine
	rs.wg.Add(1)
	go func() {
		defer rs.wg.Done()
		rs.runCleanup()
	}()

	return rs
}

// Store records a job's outcome and wakes every observer awaiting it.
// A nil res with a non-nil err records a pure failure.
func (rs *ResultSpace) Store(id string, res *RunResult, err error, ttl time.Duration) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.closed {
		return
	}

	if res == nil {
		res = &RunResult{JobID: id}
	}
	res.Err = err
	res.CreatedAt = time.Now()
	res.TTL = ttl
	rs.values[id] = res

	// Notify any waiting channels
	if channels, ok := rs.waiting[id]; ok {
		for _, ch := range channels {
			select {
			case ch <- *res:
				close(ch)
			default:
				log.Printf("Dropped result for job %s (channel full or closed)", id)
			}
		}
		delete(rs.waiting, id)
	}
}

// Await returns a channel that will receive the job's result when it is
// available. The channel gets exactly one value and is then closed.
func (rs *ResultSpace) Await(id string) chan RunResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ch := make(chan RunResult, 1)

	if rs.closed {
		close(ch)
		return ch
	}

	// Check if value already exists
	if res, ok := rs.values[id]; ok {
		ch <- *res
		close(ch)
		return ch
	}

	rs.waiting[id] = append(rs.waiting[id], ch)
	return ch
}

// Exists reports whether a result is currently stored for the id.
func (rs *ResultSpace) Exists(id string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, exists := rs.values[id]
	return exists
}

func (rs *ResultSpace) runCleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rs.done:
			return
		case <-ticker.C:
			rs.mu.Lock()
			rs.cleanupExpiredValues()
			rs.cleanupExpiredGroups()
			rs.mu.Unlock()
		}
	}
}

func (rs *ResultSpace) cleanupExpiredValues() {
	now := time.Now()
	for id, res := range rs.values {
		if res.TTL > 0 && now.Sub(res.CreatedAt) > res.TTL {
			delete(rs.values, id)
		}
	}
}

func (rs *ResultSpace) cleanupExpiredGroups() {
	now := time.Now()
	for id, group := range rs.groups {
		if group.TTL > 0 && now.Sub(group.LastUsed) > group.TTL {
			group.Close()
			delete(rs.groups, id)
		}
	}
}

func (rs *ResultSpace) CreateBroadcastGroup(id string, ttl time.Duration) *BroadcastGroup {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	group := NewBroadcastGroup(id, ttl, 100)
	rs.groups[id] = group
	return group
}

func (rs *ResultSpace) Subscribe(groupID string) chan RunResult {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if group, ok := rs.groups[groupID]; ok {
		return group.Subscribe("", 10)
	}
	return nil
}

// Publish sends a result to a broadcast group, when the group exists.
func (rs *ResultSpace) Publish(groupID string, res RunResult) {
	rs.mu.RLock()
	group := rs.groups[groupID]
	rs.mu.RUnlock()

	if group != nil {
		group.Send(res)
	}
}

// Close stops the cleanup loop and wakes pending observers with a closed
// channel. Stores after Close are dropped; closing twice is a no-op.
func (rs *ResultSpace) Close() {
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return
	}
	rs.closed = true
	rs.mu.Unlock()

	close(rs.done)
	rs.wg.Wait()

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, channels := range rs.waiting {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, group := range rs.groups {
		group.Close()
	}

	rs.values = make(map[string]*RunResult)
	rs.waiting = make(map[string][]chan RunResult)
	rs.groups = make(map[string]*BroadcastGroup)
}
