package models

import (
	"errors"
	"fmt"
)

// ErrInvalidState is returned when a write would produce a structurally
// invalid task record. The prior record is left untouched.
var ErrInvalidState = errors.New("invalid task state")

// TaskNotFoundError is returned when a referenced task id is absent from
// both the active and archived namespaces.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// IsTaskNotFound reports whether err is a TaskNotFoundError.
func IsTaskNotFound(err error) bool {
	var tnf *TaskNotFoundError
	return errors.As(err, &tnf)
}

// NoCurrentTask is the literal stored in the current-task pointer when no
// task is bound to the checked-out branch.
const NoCurrentTask = "none"
