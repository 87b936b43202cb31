package domain

import "time"

// Sender identifies who produced a message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Source is a citation record attached to an assistant message
type Source struct {
	ID    any     `json:"id"` // numeric or string, depending on backend
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score,omitempty"`
}

// Message represents one turn in a conversation
type Message struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Sender    Sender   `json:"sender"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds, fixed at creation
	Sources   []Source `json:"sources,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
