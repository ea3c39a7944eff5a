package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mklucifer/vmware-to-virt/internal/output"
	"github.com/mklucifer/vmware-to-virt/internal/pipeline"
	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

var validateConfig string

func init() {
	validateCmd.Flags().StringVarP(&validateConfig, "config", "c", "", "Path to a settings YAML file")
}

var validateCmd = &cobra.Command{
	Use:   "validate <vm-dir>",
	Short: "Validate a VMware VM without converting it",
	Long: `Run every conversion check against a VMware VM directory and report
the verdict without touching any disk.

The exit status is non-zero on a FAIL verdict, so the command can gate
a later conversion in scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}
		settings, err := loadSettingsFrom(validateConfig)
		if err != nil {
			return err
		}

		result, err := pipeline.Validate(pipeline.Options{
			InputDir: args[0],
			Settings: settings,
		})

		var failure *validate.Failure
		if err != nil && !errors.As(err, &failure) {
			return err
		}

		formatter, ferr := output.NewFormatter(output.Options{
			Format:    output.Format(outputFormat),
			NoHeaders: noHeaders,
		})
		if ferr != nil {
			return ferr
		}
		text, ferr := formatter.FormatVerdict(result.Verdict)
		if ferr != nil {
			return fmt.Errorf("failed to format output: %w", ferr)
		}
		fmt.Print(text)
		return err
	},
}
