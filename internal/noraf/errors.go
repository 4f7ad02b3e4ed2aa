package noraf

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound indicates a registry lookup for a nonexistent record.
var ErrRecordNotFound = errors.New("noraf record not found")

// UpdateFailedError reports a rejected registry write.
type UpdateFailedError struct {
	RecordID   string
	StatusCode int
	Message    string
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update of noraf record %s failed with status %d: %s", e.RecordID, e.StatusCode, e.Message)
}
