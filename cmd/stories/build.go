package main

import (
	"github.com/spf13/cobra"
)

var buildDrafts bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render the site into the output directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderSite(cmd.Context(), buildDrafts)
	},
}

func init() {
	buildCmd.Flags().BoolVar(&buildDrafts, "drafts", false, "Include posts and pages with the draft flag")
}
