package domain

// ChatSession represents one conversation thread
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	UpdatedAt int64     `json:"updatedAt"` // epoch milliseconds, refreshed on every mutation
}

// LastMessage returns the most recent message, or nil for an empty session.
// Sessions normally always hold at least one message.
func (s *ChatSession) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}
