package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var defineCmd = &cobra.Command{
	Use:   "define <domain.xml>",
	Short: "Define a generated domain in libvirt",
	Long: `Define a previously generated domain XML in libvirt.

This is the step convert --define performs automatically; run it
separately when the XML was reviewed or edited first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := defineDomain(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Domain %s defined\n", name)
		return nil
	},
}
