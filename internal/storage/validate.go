package storage

import (
	"fmt"
	"strings"
)

// Allowed values for every enumerated field. The same lists back the CHECK
// constraints in the migrations; validating here turns bad input into a
// ValidationError before it reaches the database.
var (
	ProjectStatuses = []string{"active", "on_hold", "completed", "archived"}
	Priorities      = []string{"low", "medium", "high", "critical"}
	Categories      = []string{"automation", "web_dev", "data", "infrastructure", "documentation", "other"}
	TaskStatuses    = []string{"pending", "in_progress", "completed", "blocked", "cancelled"}
	MessageRoles    = []string{"user", "assistant", "system"}
	DecisionTypes   = []string{"architecture", "technical", "design", "process", "tool_selection"}
	SessionStatuses = []string{"active", "completed", "aborted"}
	BackupStatuses  = []string{"started", "completed", "failed"}
	EntityKinds     = []string{"project", "session", "task", "message", "decision", "error", "snapshot", "context", "artifact"}
)

func validateEnum(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf("%q is not one of [%s]", value, strings.Join(allowed, ", ")),
	}
}

func validateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func validateProgress(p int) error {
	if p < 0 || p > 100 {
		return &ValidationError{Field: "progress_percentage", Reason: fmt.Sprintf("%d is outside [0,100]", p)}
	}
	return nil
}

func validateStrength(s float64) error {
	if s < 0 || s > 1 {
		return &ValidationError{Field: "strength", Reason: fmt.Sprintf("%g is outside [0,1]", s)}
	}
	return nil
}
