package core

import (
	"fmt"
	"strings"
)

// AggregateBatch reports every outcome exactly once through exec and returns
// the list unchanged.
func AggregateBatch(exec *ExecutionContext, domain string, action string, outcomes []BatchOutcome) []BatchOutcome {
	for _, outcome := range outcomes {
		resourceID := strings.TrimSpace(outcome.ResourceID)
		if !outcome.Failed() {
			exec.Info(domain, action, StatusSucceeded, resourceID, batchOutcomeMessage(outcome))
			continue
		}
		exec.Error(domain, action, StatusFailed, resourceID, batchOutcomeMessage(outcome), nil)
	}
	return outcomes
}

// CheckBatch returns a *BatchError when any outcome failed.
func CheckBatch(operation string, outcomes []BatchOutcome) error {
	failed := FailedOutcomes(outcomes)
	if len(failed) == 0 {
		return nil
	}
	return &BatchError{
		Operation: strings.TrimSpace(operation),
		Total:     len(outcomes),
		Failed:    failed,
	}
}

func FailedOutcomes(outcomes []BatchOutcome) []BatchOutcome {
	var failed []BatchOutcome
	for _, outcome := range outcomes {
		if outcome.Failed() {
			failed = append(failed, outcome)
		}
	}
	return failed
}

func batchOutcomeMessage(outcome BatchOutcome) string {
	msg := fmt.Sprintf("batch item status %s", strings.TrimSpace(string(outcome.Status)))
	if action := strings.TrimSpace(outcome.Action); action != "" {
		msg += " action " + action
	}
	if agreementID := strings.TrimSpace(outcome.AgreementID); agreementID != "" {
		msg += " agreement " + agreementID
	}
	if len(outcome.Errors) > 0 {
		msg += ": " + strings.Join(outcome.Errors, "; ")
	}
	return msg
}
