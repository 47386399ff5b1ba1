// This example builds the sample site next to it without the CLI and prints
// the tag counts.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/theleftbit/stories"
)

func main() {
	conf, err := stories.LoadConf("stories.yaml")
	if err != nil {
		log.Fatal(err)
	}
	// Keep the example output out of the way.
	conf.OutDir = filepath.Join(os.TempDir(), "stories-example")

	site, err := stories.Build(context.Background(), conf, stories.Options{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
	if err != nil {
		log.Fatal(err)
	}

	counts := site.TagCounts()
	stories.SortTagCountsByCount(counts)
	for _, c := range counts {
		fmt.Printf("%-20s %d\n", c.Name, c.TotalCount)
	}
	fmt.Println("site written to", conf.OutDir)
}
