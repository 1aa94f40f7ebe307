package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inkleaf/inkleaf/internal/archive"
	"github.com/inkleaf/inkleaf/internal/cryptostream"
	"github.com/inkleaf/inkleaf/internal/search"
)

var (
	indexPath string
	rebuild   bool
)

var indexCmd = &cobra.Command{
	Use:   "index <archive>",
	Short: "Build or update the search index from an archive",
	Long: `Indexes text elements and voice-memo transcripts of every notebook in
the archive. Handwriting recognition needs an external recognizer and is not
run by the CLI.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		salt, err := archive.ReadSalt(args[0])
		if err != nil {
			return err
		}
		key := cryptostream.DeriveKey(password, salt)
		defer key.Wipe()

		notebooks, _, err := archive.LoadAll(args[0], key, nil)
		if err != nil {
			return err
		}

		idx, err := search.OpenIndex(resolvedIndexPath(), password)
		if err != nil {
			return err
		}
		coord := search.NewCoordinator(idx, nil, nil, cfg.Search.StrokeGroupingGap)

		var indexed int
		if rebuild {
			indexed, err = coord.RebuildIndex(cmd.Context(), notebooks, nil)
		} else {
			indexed, err = coord.IndexNotebooks(cmd.Context(), notebooks, nil)
		}
		if err != nil {
			idx.Close(false)
			return err
		}
		if err := idx.Close(true); err != nil {
			return err
		}
		fmt.Printf("indexed %d entr(ies)\n", indexed)
		return nil
	},
}

var (
	searchFilter   string
	searchNotebook string
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Query the search index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePassword(); err != nil {
			return err
		}
		idx, err := search.OpenIndex(resolvedIndexPath(), password)
		if err != nil {
			return err
		}
		defer idx.Close(false)

		engine := search.NewEngine(idx, cfg.Search.PrefixMinLength, cfg.Search.SnippetLength)
		query := ""
		for i, a := range args {
			if i > 0 {
				query += " "
			}
			query += a
		}

		limit := searchLimit
		if limit <= 0 {
			limit = cfg.Search.ResultLimit
		}
		results, err := engine.Search(query, search.Filter(searchFilter), searchNotebook, limit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no results")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%-12s page=%s  %s\n", r.Entry.ElementType, r.Entry.PageID, r.Snippet)
		}
		return nil
	},
}

func resolvedIndexPath() string {
	if indexPath != "" {
		return indexPath
	}
	return cfg.IndexPath()
}

func init() {
	indexCmd.Flags().StringVar(&indexPath, "index", "", "index file (default: configured index path)")
	indexCmd.Flags().BoolVar(&rebuild, "rebuild", false, "drop the index and re-index from scratch")
	searchCmd.Flags().StringVar(&indexPath, "index", "", "index file (default: configured index path)")
	searchCmd.Flags().StringVar(&searchFilter, "filter", string(search.FilterAll), "all, text, handwriting or voice")
	searchCmd.Flags().StringVar(&searchNotebook, "notebook", "", "restrict to one notebook id")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default: configured limit)")
}
