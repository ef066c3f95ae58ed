package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
)

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeRecords(w io.Writer, format string, records []core.ExecutionRecord) error {
	if format == "json" {
		return writeJSON(w, records)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tDOMAIN\tACTION\tSTATUS\tRESOURCE\tMESSAGE")
	for _, record := range records {
		message := record.Message
		if record.Error != "" {
			message += ": " + record.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			record.CreatedAt.Format(time.RFC3339),
			record.Level,
			record.Domain,
			record.Action,
			record.Status,
			record.ResourceID,
			message,
		)
	}
	return tw.Flush()
}

type applySummary struct {
	ExecutionID      string                 `json:"execution_id"`
	AgreementID      string                 `json:"agreement_id"`
	ResourceGroups   int                    `json:"resource_groups"`
	PermissionGroups int                    `json:"permission_groups"`
	RoleTemplates    int                    `json:"role_templates"`
	Assignments      int                    `json:"assignments"`
	Administrators   int                    `json:"administrators"`
	Errors           []core.ExecutionRecord `json:"errors,omitempty"`
}

func writeApplySummary(w io.Writer, format string, result entcommand.Result[core.ApplyResult]) error {
	summary := applySummary{
		ExecutionID:      result.ExecutionID,
		AgreementID:      result.Value.Agreement.ID,
		ResourceGroups:   len(result.Value.ResourceGroups),
		PermissionGroups: len(result.Value.PermissionGroups),
		RoleTemplates:    len(result.Value.RoleTemplates),
		Assignments:      len(result.Value.Assignments),
		Administrators:   len(result.Value.Agreement.Administrators),
		Errors:           result.Errors(),
	}
	if format == "json" {
		return writeJSON(w, summary)
	}
	fmt.Fprintf(w, "execution %s for agreement %s\n", summary.ExecutionID, summary.AgreementID)
	fmt.Fprintf(w, "  resource groups:   %d\n", summary.ResourceGroups)
	fmt.Fprintf(w, "  permission groups: %d\n", summary.PermissionGroups)
	fmt.Fprintf(w, "  role templates:    %d\n", summary.RoleTemplates)
	fmt.Fprintf(w, "  assignments:       %d\n", summary.Assignments)
	fmt.Fprintf(w, "  administrators:    %d\n", summary.Administrators)
	if len(summary.Errors) == 0 {
		return nil
	}
	fmt.Fprintf(w, "%d error record(s):\n", len(summary.Errors))
	return writeRecords(w, format, summary.Errors)
}
