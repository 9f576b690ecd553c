package coordinator

import (
	"net/http"
)

// Result is what a workflow reports to its caller. Step names how far the
// workflow got, on success and on failure.
type Result struct {
	Detail     any    `json:"detail,omitempty"`
	Step       string `json:"step"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
}

// FailureDetail is the Detail of a failed Result.
type FailureDetail struct {
	// Payload is the original command payload echoed by the failing worker.
	Payload       map[string]any        `json:"payload,omitempty"`
	Reason        string                `json:"reason"`
	Kind          string                `json:"kind"`
	CorrelationID string                `json:"correlationId,omitempty"`
	Compensations []CompensationOutcome `json:"compensations,omitempty"`
}

// CompensationOutcome reports one compensation command issued after a failure.
type CompensationOutcome struct {
	Step    string `json:"step"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// WarningDetail is the Detail of a Result that completed past a degradable failure.
type WarningDetail struct {
	Result   any      `json:"result,omitempty"`
	Warnings []string `json:"warnings"`
}

const (
	messageCompleted             = "completed"
	messageCompletedWithWarnings = "completed with warnings"
	stepValidation               = "validation"
)

func succeeded(step string, detail any, warnings []string) Result {
	if len(warnings) > 0 {
		return Result{
			Success:    true,
			Step:       step,
			Message:    messageCompletedWithWarnings,
			Detail:     WarningDetail{Result: detail, Warnings: warnings},
			StatusCode: http.StatusOK,
		}
	}

	return Result{
		Success:    true,
		Step:       step,
		Message:    messageCompleted,
		Detail:     detail,
		StatusCode: http.StatusOK,
	}
}
