package downloader

import (
	"fmt"

	"github.com/google/uuid"
)

// Request is a validated track URL plus the correlation id that names its
// working directory. It is never persisted on its own.
type Request struct {
	ID  string
	URL string
}

// NewRequest assigns a fresh random download id to url
func NewRequest(url string) Request {
	return Request{ID: uuid.NewString(), URL: url}
}

// validateID rejects ids that could escape the working directory root
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid download id %q: %w", id, err)
	}
	return nil
}
