package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/theleftbit/stories"
)

var (
	tagsJSON   bool
	tagsSort   string
	tagsDrafts bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Print how many visible posts carry each tag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		site, err := stories.ReadSite(cmd.Context(), conf, stories.Options{Drafts: tagsDrafts, Logger: logger})
		if err != nil {
			return err
		}
		counts := site.TagCounts()
		if err := sortTagCounts(counts, tagsSort); err != nil {
			return err
		}
		return writeTags(cmd.OutOrStdout(), counts, tagsJSON)
	},
}

func init() {
	tagsCmd.Flags().BoolVar(&tagsJSON, "json", false, "Print the counts as JSON")
	tagsCmd.Flags().StringVar(&tagsSort, "sort", "", "Order by name or count; empty keeps first-seen order")
	tagsCmd.Flags().BoolVar(&tagsDrafts, "drafts", false, "Include posts with the draft flag")
}

func sortTagCounts(counts []stories.TagCount, by string) error {
	switch by {
	case "":
	case "name":
		stories.SortTagCountsByName(counts)
	case "count":
		stories.SortTagCountsByCount(counts)
	default:
		return fmt.Errorf("unknown sort order %q, want name or count", by)
	}
	return nil
}

func writeTags(w io.Writer, counts []stories.TagCount, asJSON bool) error {
	if asJSON {
		if counts == nil {
			counts = []stories.TagCount{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.TotalCount)
	}
	return tw.Flush()
}
