package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	jira "github.com/andygrunwald/go-jira"
	"github.com/google/uuid"

	"factory-hook/internal/middleware"
	"factory-hook/internal/service"
)

const maxWebhookBodyBytes = 1 << 20

// IssueWebhook is the issue event payload posted by the issue tracker
type IssueWebhook struct {
	Timestamp          int64       `json:"timestamp"`
	WebhookEvent       string      `json:"webhookEvent"`
	IssueEventTypeName string      `json:"issue_event_type_name"`
	EventTypeID        int         `json:"eventTypeId,omitempty"`
	User               *jira.User  `json:"user,omitempty"`
	Issue              *jira.Issue `json:"issue"`
}

// EventType maps the payload to an issue event type. A numeric event type id
// takes precedence over the webhook and event type names.
func (p IssueWebhook) EventType() service.EventType {
	if p.EventTypeID != 0 {
		return service.EventType(p.EventTypeID)
	}

	switch p.IssueEventTypeName {
	case "issue_created":
		return service.EventCreated
	case "issue_resolved":
		return service.EventResolved
	case "issue_closed":
		return service.EventClosed
	case "issue_deleted":
		return service.EventDeleted
	}

	switch p.WebhookEvent {
	case "jira:issue_created":
		return service.EventCreated
	case "jira:issue_deleted":
		return service.EventDeleted
	}
	return service.EventUnknown
}

// DefaultEventQueueSize bounds the events accepted but not yet handled
const DefaultEventQueueSize = 100

var (
	errNoListener = errors.New("no listener registered")
	errQueueFull  = errors.New("event queue full")
	errClosed     = errors.New("event handler closed")
)

type queuedEvent struct {
	ctx   context.Context
	event service.IssueEvent
}

// EventHandler receives issue webhooks and publishes them to the registered
// listeners. A single worker handles accepted events in arrival order, each
// to completion before the next starts.
type EventHandler struct {
	writer ResponseWriter

	mu        sync.RWMutex
	listeners []service.Listener
	closed    bool

	queue   chan queuedEvent
	pending sync.WaitGroup
	done    chan struct{}
}

// NewEventHandler creates a new issue event handler and starts its worker
func NewEventHandler(writer ResponseWriter, queueSize int) *EventHandler {
	if queueSize < 1 {
		queueSize = DefaultEventQueueSize
	}
	h := &EventHandler{
		writer: writer,
		queue:  make(chan queuedEvent, queueSize),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a listener; registering the same listener twice is a no-op
func (h *EventHandler) Register(listener service.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		if l == listener {
			return
		}
	}
	h.listeners = append(h.listeners, listener)
}

// Unregister removes a listener
func (h *EventHandler) Unregister(listener service.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.listeners {
		if l == listener {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

// Wait blocks until every accepted event has been handled
func (h *EventHandler) Wait() {
	h.pending.Wait()
}

// Close stops accepting events and blocks until the queued ones are handled
// or ctx is done.
func (h *EventHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvents processes POST /events
func (h *EventHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	defer func() { _ = r.Body.Close() }()

	var payload IssueWebhook
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Failed to decode issue webhook", "error", err, "request_id", middleware.RequestIDFromContext(r.Context()))
		_ = h.writer.WriteError(w, "Error parsing JSON payload", http.StatusBadRequest)
		return
	}
	if payload.Issue == nil || payload.Issue.Key == "" {
		_ = h.writer.WriteError(w, "Missing issue in payload", http.StatusBadRequest)
		return
	}

	event := toIssueEvent(payload)
	event.ID = middleware.RequestIDFromContext(r.Context())
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	slog.Debug("Issue event received",
		"event_id", event.ID,
		"event_type", event.Type.String(),
		"webhook_event", payload.WebhookEvent,
		"issue_key", event.Issue.Key,
	)

	if err := h.enqueue(context.WithoutCancel(r.Context()), event); err != nil {
		slog.Warn("Issue event rejected", "event_id", event.ID, "issue_key", event.Issue.Key, "reason", err)
		_ = h.writer.WriteError(w, "Issue event not accepted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	_ = h.writer.WriteJSON(w, http.StatusAccepted, map[string]string{
		"eventId": event.ID,
		"status":  "accepted",
	})
}

func (h *EventHandler) enqueue(ctx context.Context, event service.IssueEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return errClosed
	}
	if len(h.listeners) == 0 {
		return errNoListener
	}

	h.pending.Add(1)
	select {
	case h.queue <- queuedEvent{ctx: ctx, event: event}:
		return nil
	default:
		h.pending.Done()
		return errQueueFull
	}
}

func (h *EventHandler) run() {
	defer close(h.done)
	for item := range h.queue {
		h.dispatch(item)
		h.pending.Done()
	}
}

// dispatch delivers one event to the listeners registered at the time it is handled
func (h *EventHandler) dispatch(item queuedEvent) {
	h.mu.RLock()
	listeners := make([]service.Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	if len(listeners) == 0 {
		slog.Warn("No listener registered, dropping issue event", "event_id", item.event.ID, "issue_key", item.event.Issue.Key)
		return
	}
	for _, listener := range listeners {
		listener.OnIssueEvent(item.ctx, item.event)
	}
}

func toIssueEvent(payload IssueWebhook) service.IssueEvent {
	issue := payload.Issue
	event := service.IssueEvent{
		Type: payload.EventType(),
		Issue: service.IssueContext{
			ID:  issue.ID,
			Key: issue.Key,
		},
	}
	if issue.Fields != nil {
		event.Issue.ProjectKey = issue.Fields.Project.Key
		event.Issue.ProjectName = issue.Fields.Project.Name
	}
	if payload.User != nil {
		event.User = &service.User{
			Name:        payload.User.Name,
			Key:         payload.User.Key,
			DisplayName: payload.User.DisplayName,
		}
	}
	return event
}
