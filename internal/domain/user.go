package domain

import (
	"fmt"
	"time"
)

// StateName identifies the conversation step a user is in
type StateName string

const (
	StateInitial             StateName = "initial"
	StateDownloading         StateName = "downloading"
	StateAwaitingPostProcess StateName = "awaiting_post_process"
)

// StateNames lists every declared state
var StateNames = []StateName{
	StateInitial,
	StateDownloading,
	StateAwaitingPostProcess,
}

// Valid reports whether s is one of the declared states
func (s StateName) Valid() bool {
	for _, name := range StateNames {
		if s == name {
			return true
		}
	}
	return false
}

// ErrInvalidState is returned when a write would persist an undeclared state
type ErrInvalidState struct {
	Name StateName
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("invalid state name %q", string(e.Name))
}

// UserState is the persisted conversation record of a single user.
// State is read back verbatim so that a corrupted row can be detected
// by the state machine; writes always go through Valid.
type UserState struct {
	ID               int64
	TelegramID       int64
	ConnectionPhrase string
	State            StateName
	Context          []byte // tagged envelope, see EncodeContext
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasContext reports whether a context payload is stored
func (u *UserState) HasContext() bool {
	return len(u.Context) > 0
}
