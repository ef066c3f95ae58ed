package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	baseURL    string
	auditDSN   string
	output     string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "entitlementsctl",
		Short:         "Reconcile agreement entitlements against the access-control backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "entitlements.toml", "Path to TOML configuration file")
	flags.StringVar(&opts.baseURL, "base-url", "", "Override access_control.base_url")
	flags.StringVar(&opts.auditDSN, "audit-dsn", "", "Override audit.dsn")
	flags.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newApplyCmd(opts),
		newClearPermissionsCmd(opts),
		newRemoveAdminsCmd(opts),
		newDeletePermissionGroupsCmd(opts),
		newRecordsCmd(opts),
	)
	return root
}

func validateOutputFormat(output string) error {
	switch strings.TrimSpace(output) {
	case "", "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
}
