package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklucifer/vmware-to-virt/internal/config"
	"github.com/mklucifer/vmware-to-virt/internal/libvirt"
	"github.com/mklucifer/vmware-to-virt/internal/output"
	"github.com/mklucifer/vmware-to-virt/internal/pipeline"
	"github.com/mklucifer/vmware-to-virt/internal/progress"
	"github.com/mklucifer/vmware-to-virt/internal/validate"
)

var (
	convertParallel int
	convertConfig   string
	convertDefine   bool
)

func init() {
	convertCmd.Flags().IntVarP(&convertParallel, "parallel", "p", 0, "Maximum disks converted concurrently (default from config)")
	convertCmd.Flags().StringVarP(&convertConfig, "config", "c", "", "Path to a settings YAML file")
	convertCmd.Flags().BoolVar(&convertDefine, "define", false, "Define the generated domain in libvirt")
}

var convertCmd = &cobra.Command{
	Use:   "convert <vm-dir> <output-dir>",
	Short: "Convert a VMware VM to libvirt/KVM",
	Long: `Convert a VMware virtual machine directory into a libvirt-ready output
directory.

The VM is parsed and validated first; conversion only starts on a PASS
or PASS_WITH_WARNINGS verdict. Disks are converted to qcow2, NVRAM and
CD-ROM images are carried over and a domain XML is written next to them.

Output formats:
  -o table  Human-readable summary (default)
  -o yaml   Full report as YAML
  -o json   Full report as JSON`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := output.ValidateFormat(outputFormat); err != nil {
			return err
		}
		settings, err := loadSettingsFrom(convertConfig)
		if err != nil {
			return err
		}
		if convertParallel > 0 {
			settings.Parallel = convertParallel
		}

		observer := progress.Func(func(e progress.Event) {
			fmt.Printf("[%s] %s\n", e.Stage, e.Message)
		})

		ctx := context.Background()
		result, err := pipeline.Run(ctx, pipeline.Options{
			InputDir:  args[0],
			OutputDir: args[1],
			Settings:  settings,
			Observer:  observer,
		})

		// A FAIL verdict still carries findings worth showing.
		var failure *validate.Failure
		if err != nil && !errors.As(err, &failure) {
			return err
		}

		report := buildReport(result)
		if err == nil && convertDefine {
			name, defineErr := defineDomain(ctx, result.DomainXMLPath)
			if defineErr != nil {
				return defineErr
			}
			report.Defined = true
			report.DefinedAs = name
		}

		if printErr := printReport(report); printErr != nil {
			return printErr
		}
		return err
	},
}

func loadSettingsFrom(path string) (*config.Settings, error) {
	if path == "" {
		return config.Default(), nil
	}
	settings, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func buildReport(r *pipeline.Result) *output.Report {
	report := &output.Report{
		Name:      r.Name,
		DomainXML: r.DomainXMLPath,
	}
	if r.Verdict != nil {
		report.Result = r.Verdict.Result()
		report.Findings = r.Verdict.Findings
	}
	for _, d := range r.Disks {
		report.Disks = append(report.Disks, output.DiskReport{Source: d.SourcePath, Target: d.TargetPath})
	}
	return report
}

func printReport(report *output.Report) error {
	formatter, err := output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
	if err != nil {
		return err
	}
	text, err := formatter.FormatReport(report)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(text)
	return nil
}

func defineDomain(ctx context.Context, xmlPath string) (string, error) {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return "", fmt.Errorf("failed to read domain XML: %w", err)
	}

	client, err := libvirt.ConnectWithContext(ctx, "", 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("failed to connect to libvirt: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close libvirt connection: %v\n", closeErr)
		}
	}()

	name, err := client.DefineDomain(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to define domain: %w", err)
	}
	return name, nil
}
