// broadcastgroup.go
package qlite

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

/*
FilterFunc decides whether a result is forwarded to subscribers.
*/
type FilterFunc func(RunResult) bool

/*
BroadcastGroup streams job results to a set of subscribers.

A batch of related jobs can publish every finished result into one group,
letting observers follow the batch without polling each job id. Delivery
is best-effort: a subscriber whose buffer is full misses the result rather
than blocking a worker.

Key features:
  - Subscriber management
  - Filtered result delivery
  - Delivery metrics
*/
type BroadcastGroup struct {
	mu sync.RWMutex

	ID          string
	subscribers map[string]chan RunResult
	filters     []FilterFunc
	metrics     *BroadcastMetrics

	TTL          time.Duration
	LastUsed     time.Time
	maxQueueSize int
}

/*
BroadcastMetrics tracks delivery behavior of a broadcast group.
*/
type BroadcastMetrics struct {
	MessagesSent      int64
	MessagesDropped   int64
	ActiveSubscribers int
	LastBroadcastTime time.Time
}

/*
NewBroadcastGroup creates a new broadcast group.

Parameters:
  - id: Unique identifier for the group
  - ttl: How long the group may sit idle before cleanup
  - maxQueue: Default buffer size for subscriber channels

Returns:
  - *BroadcastGroup: A new broadcast group instance
*/
func NewBroadcastGroup(id string, ttl time.Duration, maxQueue int) *BroadcastGroup {
	return &BroadcastGroup{
		ID:           id,
		subscribers:  make(map[string]chan RunResult),
		TTL:          ttl,
		LastUsed:     time.Now(),
		maxQueueSize: maxQueue,
		metrics:      &BroadcastMetrics{},
	}
}

/*
Subscribe registers a subscriber and returns its receive channel.

Parameters:
  - subscriberID: Identifier for the subscriber; empty gets a generated one
  - bufferSize: Size of the subscriber's buffer; 0 uses the group default

Returns:
  - chan RunResult: Channel receiving broadcast results

Thread-safe: This method uses mutual exclusion to ensure safe concurrent access.
*/
func (bg *BroadcastGroup) Subscribe(subscriberID string, bufferSize int) chan RunResult {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	// Closed groups hand back a closed channel rather than a send target.
	if bg.subscribers == nil {
		ch := make(chan RunResult)
		close(ch)
		return ch
	}

	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}
	if bufferSize <= 0 {
		bufferSize = bg.maxQueueSize
	}

	ch := make(chan RunResult, bufferSize)
	bg.subscribers[subscriberID] = ch
	bg.metrics.ActiveSubscribers++
	return ch
}

/*
Unsubscribe removes a subscriber and closes its channel.

Thread-safe: This method uses mutual exclusion to ensure safe concurrent access.
*/
func (bg *BroadcastGroup) Unsubscribe(subscriberID string) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	if ch, exists := bg.subscribers[subscriberID]; exists {
		close(ch)
		delete(bg.subscribers, subscriberID)
		bg.metrics.ActiveSubscribers--
	}
}

/*
Send delivers a result to every subscriber that passes the filters.

Delivery uses non-blocking writes; a full subscriber buffer counts the
result as dropped for that subscriber.

Thread-safe: This method uses mutual exclusion to ensure safe concurrent access.
*/
func (bg *BroadcastGroup) Send(res RunResult) {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	bg.LastUsed = time.Now()

	for _, filter := range bg.filters {
		if !filter(res) {
			bg.metrics.MessagesDropped++
			return
		}
	}

	for _, ch := range bg.subscribers {
		select {
		case ch <- res:
			bg.metrics.MessagesSent++
		default:
			bg.metrics.MessagesDropped++
		}
	}

	bg.metrics.LastBroadcastTime = bg.LastUsed
}

/*
AddFilter adds a filter applied to every result before delivery.
*/
func (bg *BroadcastGroup) AddFilter(filter FilterFunc) {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.filters = append(bg.filters, filter)
}

/*
GetMetrics returns a copy of the current delivery metrics.
*/
func (bg *BroadcastGroup) GetMetrics() BroadcastMetrics {
	bg.mu.RLock()
	defer bg.mu.RUnlock()
	return *bg.metrics
}

/*
Close closes every subscriber channel and clears the group.

Thread-safe: This method uses mutual exclusion to ensure safe concurrent access.
*/
func (bg *BroadcastGroup) Close() {
	bg.mu.Lock()
	defer bg.mu.Unlock()

	for _, ch := range bg.subscribers {
		close(ch)
	}

	bg.subscribers = nil
	bg.filters = nil
}
