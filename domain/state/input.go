// Package state models the per-request agent state, its audit log and the exported payload.
package state

import (
	"fmt"
	"strings"
)

// Priority labels accepted on input.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var priorityLevels = map[string]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// Input is the request payload. Fields are set once at initialization.
type Input struct {
	CustomerName string `json:"customer_name" yaml:"customer_name"`
	Email        string `json:"email" yaml:"email"`
	Query        string `json:"query" yaml:"query"`
	Priority     string `json:"priority" yaml:"priority"`
	TicketID     string `json:"ticket_id" yaml:"ticket_id"`
}

// Validate checks that the required fields are present.
func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.CustomerName) == "" {
		missing = append(missing, "customer_name")
	}
	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.Query) == "" {
		missing = append(missing, "query")
	}
	if strings.TrimSpace(in.TicketID) == "" {
		missing = append(missing, "ticket_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// NormalizedPriority returns the lower-cased priority label, or medium when
// the label is empty or unrecognized.
func (in Input) NormalizedPriority() string {
	p := strings.ToLower(strings.TrimSpace(in.Priority))
	if _, ok := priorityLevels[p]; ok {
		return p
	}
	return PriorityMedium
}

// PriorityLevel maps the priority label to 1 (low) through 4 (critical).
func (in Input) PriorityLevel() int {
	return priorityLevels[in.NormalizedPriority()]
}

// Map returns the input as a mapping, as echoed in payloads and contexts.
func (in Input) Map() map[string]any {
	return map[string]any{
		"customer_name": in.CustomerName,
		"email":         in.Email,
		"query":         in.Query,
		"priority":      in.Priority,
		"ticket_id":     in.TicketID,
	}
}

// Keys returns the input field names in declaration order.
func (in Input) Keys() []string {
	return []string{"customer_name", "email", "query", "priority", "ticket_id"}
}
