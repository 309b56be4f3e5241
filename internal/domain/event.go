package domain

import "strings"

// EventKind distinguishes inbound chat activity
type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is a platform-neutral inbound update
type Event struct {
	UpdateID int
	Kind     EventKind
	UserID   int64
	Username string
	ChatID   int64

	// Message payload, empty for media without caption
	Text string

	// Callback payload
	CallbackID   string
	CallbackData string
}

// IsMessage reports whether e carries a chat message
func (e Event) IsMessage() bool {
	return e.Kind == EventMessage
}

// Command splits the text on its first whitespace into the leading token
// and the remainder.
func (e Event) Command() (string, string) {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return "", ""
	}
	idx := strings.IndexAny(text, " \t\n")
	if idx < 0 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx+1:])
}
