// Package storage holds the persisted-state key names shared by the
// key-value backed state stores. The three keys are always written
// together within one state-change cycle, last writer wins.
package storage

const (
	KeySessions  = "chat_widget_sessions"
	KeyCurrentID = "chat_widget_current_session_id"
	KeyIsOpen    = "chat_widget_is_open"
)
