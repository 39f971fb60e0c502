package service

import (
	"context"

	"factory-hook/internal/factory"
	"factory-hook/internal/repository"
)

// EventType identifies an issue lifecycle event. Values follow the issue
// tracker's numeric event type ids; ids not listed here (2 updated, 3 assigned,
// 6 commented, 7 reopened, ...) are never terminal.
type EventType int

const (
	EventUnknown  EventType = 0
	EventCreated  EventType = 1
	EventResolved EventType = 4
	EventClosed   EventType = 5
	EventDeleted  EventType = 8
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventResolved:
		return "resolved"
	case EventClosed:
		return "closed"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends the issue's factories' lifetime.
func (e EventType) Terminal() bool {
	return e == EventClosed || e == EventDeleted || e == EventResolved
}

// User is the issue tracker user acting on an issue
type User struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// IssueContext is the issue an event refers to
type IssueContext struct {
	ID          string
	Key         string
	ProjectKey  string
	ProjectName string
}

// IssueEvent is an issue lifecycle notification
type IssueEvent struct {
	// ID correlates log lines of one delivery
	ID    string
	Type  EventType
	Issue IssueContext
	// User is nil when the tracker did not report an acting user
	User *User
}

// FieldBinding holds the ids of the issue fields storing the factory links
type FieldBinding struct {
	DevelopFieldID string
	ReviewFieldID  string
}

// Complete reports whether both link fields were found.
func (b FieldBinding) Complete() bool {
	return b.DevelopFieldID != "" && b.ReviewFieldID != ""
}

// Links are the public URLs of a provisioned factory pair
type Links struct {
	Develop string
	Review  string
}

// Provisioner creates the factory pair of a new issue
type Provisioner interface {
	// Provision creates the Develop and Review factories and returns their public links
	Provision(ctx context.Context, settings repository.ConnectionSettings, issue IssueContext) (Links, error)
}

// Decommissioner removes one factory of a terminated issue
type Decommissioner interface {
	// Decommission deletes the factory of the given kind named after issueKey
	Decommission(ctx context.Context, settings repository.ConnectionSettings, issueKey string, kind factory.Kind) error
}

// FieldWriter writes the two link values into the issue in one update
type FieldWriter interface {
	// Update validates then commits both field values, or writes nothing
	Update(ctx context.Context, user *User, issueKey, developFieldID, developValue, reviewFieldID, reviewValue string) error
}

// Listener receives issue events
type Listener interface {
	OnIssueEvent(ctx context.Context, event IssueEvent)
}

// EventPublisher delivers issue events to registered listeners
type EventPublisher interface {
	Register(listener Listener)
	Unregister(listener Listener)
}
