package main

import (
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	"github.com/goliatone/go-entitlements/declarative"
	"github.com/spf13/cobra"
)

func newApplyCmd(opts *globalOptions) *cobra.Command {
	var (
		file         string
		mode         string
		allowUnknown bool
		executionID  string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Converge an agreement to a desired state document",
		Long:  "Reads a YAML desired state document and reconciles resource groups, permission groups, role templates, user assignments and administrators.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := declarative.LoadFileWithOptions(file, declarative.LoadOptions{AllowUnknownFields: allowUnknown})
			if err != nil {
				return fmt.Errorf("load desired state: %w", err)
			}
			if strings.TrimSpace(mode) != "" {
				state.Mode = core.IngestionMode(mode).Normalize()
			}

			rt, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			collector := gocmd.NewResult[entcommand.Result[core.ApplyResult]]()
			ctx := gocmd.ContextWithResult(cmd.Context(), collector)
			runErr := rt.facade.Commands().ApplyDesiredState.Execute(ctx, entcommand.ApplyDesiredStateMessage{
				ExecutionID: executionID,
				State:       state,
			})
			if result, ok := collector.Load(); ok {
				if err := writeApplySummary(cmd.OutOrStdout(), opts.output, result); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to desired state YAML")
	cmd.Flags().StringVar(&mode, "mode", "", "Override ingestion mode (replace, merge)")
	cmd.Flags().BoolVar(&allowUnknown, "allow-unknown-fields", false, "Ignore unknown YAML fields")
	cmd.Flags().StringVar(&executionID, "execution-id", "", "Execution id to stamp on records (generated when empty)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
