// Package sse implements Server-Sent Events so open browser tabs see new
// batches, history entries and schedule changes without polling.
package sse

import (
	"time"

	"github.com/works-s/postsmith/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventHistoryAppended is sent after a generated batch is recorded.
	EventHistoryAppended EventType = "history.appended"

	// EventScheduleAdded is sent after a post is scheduled.
	EventScheduleAdded EventType = "schedule.added"
	// EventScheduleRemoved is sent after a scheduled post is deleted.
	EventScheduleRemoved EventType = "schedule.removed"

	// EventRecordsRestored is sent after a backup or browser export is restored.
	EventRecordsRestored EventType = "records.restored"

	// EventWorkspaceChanged is sent when the selection, batch, busy flag or
	// image prompts change.
	EventWorkspaceChanged EventType = "workspace.changed"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// HistoryAppendedEventData carries the new record and the resulting size.
type HistoryAppendedEventData struct {
	Item  domain.HistoryItem `json:"item"`
	Total int                `json:"total"`
}

// ScheduleAddedEventData carries the new scheduled post.
type ScheduleAddedEventData struct {
	Post domain.ScheduledPost `json:"post"`
}

// ScheduleRemovedEventData names the removed scheduled post.
type ScheduleRemovedEventData struct {
	ID int64 `json:"id"`
}

// RecordsRestoredEventData carries the collection sizes after a restore.
type RecordsRestoredEventData struct {
	History  int `json:"history"`
	Schedule int `json:"schedule"`
}

// WorkspaceChangedEventData summarizes the workspace after a change.
type WorkspaceChangedEventData struct {
	Reason    string           `json:"reason"`
	Selection domain.Selection `json:"selection"`
	BatchID   string           `json:"batch_id,omitempty"`
	Busy      bool             `json:"busy"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewHistoryAppendedEvent creates a history appended event.
func NewHistoryAppendedEvent(item domain.HistoryItem, total int) Event {
	return Event{
		Type:      EventHistoryAppended,
		Data:      HistoryAppendedEventData{Item: item, Total: total},
		Timestamp: time.Now(),
	}
}

// NewScheduleAddedEvent creates a schedule added event.
func NewScheduleAddedEvent(post domain.ScheduledPost) Event {
	return Event{
		Type:      EventScheduleAdded,
		Data:      ScheduleAddedEventData{Post: post},
		Timestamp: time.Now(),
	}
}

// NewScheduleRemovedEvent creates a schedule removed event.
func NewScheduleRemovedEvent(id int64) Event {
	return Event{
		Type:      EventScheduleRemoved,
		Data:      ScheduleRemovedEventData{ID: id},
		Timestamp: time.Now(),
	}
}

// NewRecordsRestoredEvent creates a records restored event.
func NewRecordsRestoredEvent(history, schedule int) Event {
	return Event{
		Type:      EventRecordsRestored,
		Data:      RecordsRestoredEventData{History: history, Schedule: schedule},
		Timestamp: time.Now(),
	}
}

// NewWorkspaceChangedEvent creates a workspace changed event.
func NewWorkspaceChangedEvent(data WorkspaceChangedEventData) Event {
	return Event{
		Type:      EventWorkspaceChanged,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
