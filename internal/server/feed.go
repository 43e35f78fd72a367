package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	feedEventReady     = "ready"
	feedEventChange    = "change"
	feedEventHeartbeat = "heartbeat"

	defaultFeedBuffer        = 16
	defaultHeartbeatInterval = 25 * time.Second
)

// ChangeFeed fans committed coding mutations out to subscribers of one project.
// Slow subscribers drop events instead of blocking the mutation path.
type ChangeFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*feedSubscriber
	nextID      int64
	bufferSize  int
}

type feedSubscriber struct {
	id     int64
	stream chan coding.ChangeEvent
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		subscribers: make(map[string]map[int64]*feedSubscriber),
		bufferSize:  defaultFeedBuffer,
	}
}

// Subscribe registers a stream for projectID. The subscription ends when ctx is done or cleanup runs.
func (f *ChangeFeed) Subscribe(ctx context.Context, projectID string) (<-chan coding.ChangeEvent, func()) {
	if projectID == "" {
		ch := make(chan coding.ChangeEvent)
		close(ch)
		return ch, func() {}
	}
	subscriber := &feedSubscriber{
		id:     f.nextSequence(),
		stream: make(chan coding.ChangeEvent, f.bufferSize),
	}
	f.register(projectID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			f.unregister(projectID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish implements coding.ChangeNotifier.
func (f *ChangeFeed) Publish(event coding.ChangeEvent) {
	if event.ProjectID == "" {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, subscriber := range f.subscribers[event.ProjectID] {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

// Subscribers reports the number of open subscriptions for projectID.
func (f *ChangeFeed) Subscribers(projectID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[projectID])
}

func (f *ChangeFeed) nextSequence() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID
}

func (f *ChangeFeed) register(projectID string, subscriber *feedSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[projectID]; !ok {
		f.subscribers[projectID] = make(map[int64]*feedSubscriber)
	}
	f.subscribers[projectID][subscriber.id] = subscriber
}

func (f *ChangeFeed) unregister(projectID string, subscriberID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subscribers := f.subscribers[projectID]
	if subscribers == nil {
		return
	}
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(f.subscribers, projectID)
	}
}

type changeEventPayload struct {
	ProjectID  string   `json:"project_id"`
	Generation int64    `json:"generation"`
	Kind       string   `json:"kind,omitempty"`
	EntityIDs  []string `json:"entity_ids,omitempty"`
	Timestamp  int64    `json:"timestamp_s"`
}

func newChangeEventPayload(event coding.ChangeEvent) changeEventPayload {
	return changeEventPayload{
		ProjectID:  event.ProjectID,
		Generation: event.Generation,
		Kind:       string(event.Kind),
		EntityIDs:  event.EntityIDs,
		Timestamp:  event.Timestamp.Unix(),
	}
}

func (h *httpHandler) handleProjectEvents(c *gin.Context) {
	projectID := c.Param("projectID")
	if _, err := h.coding.GetProject(c.Request.Context(), projectID); err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.feed.Subscribe(ctx, projectID)
	defer cleanup()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(feedEventReady, changeEventPayload{
		ProjectID:  projectID,
		Generation: h.coding.Generation(projectID),
		Timestamp:  time.Now().Unix(),
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(feedEventChange, newChangeEventPayload(event))
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(feedEventHeartbeat, gin.H{"timestamp_s": tick.Unix()})
			return true
		}
	})
	h.logger.Debug("change feed closed", zap.String("project_id", projectID))
}
