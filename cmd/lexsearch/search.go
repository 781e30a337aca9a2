package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperjump/lexsearch/internal/cli"
	"github.com/hyperjump/lexsearch/internal/models"
)

const dateLayout = "2006-01-02"

var (
	searchMode          string
	searchLimit         int
	searchOffset        int
	searchTypes         []string
	searchJurisdictions []string
	searchConcepts      []string
	searchFrom          string
	searchTo            string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Runs a hybrid search over indexed legal documents. Semantic (vector) and
keyword scores are fused with the configured weights; --mode restricts the
search to one branch. The query is all arguments joined by spaces.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(models.ModeHybrid), "search mode: hybrid, semantic or keyword")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of results to skip")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "filter by document type (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchJurisdictions, "jurisdiction", nil, "filter by jurisdiction (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchConcepts, "concept", nil, "filter by legal concept (repeatable)")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "earliest publication date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "latest publication date (YYYY-MM-DD)")
	rootCmd.AddCommand(searchCmd)
}

// buildSearchQuery joins args so multi-word queries work with or without shell quoting.
func buildSearchQuery(args []string) (*models.SearchQuery, error) {
	q := &models.SearchQuery{
		Query:  strings.TrimSpace(strings.Join(args, " ")),
		Mode:   models.SearchMode(searchMode),
		Limit:  searchLimit,
		Offset: searchOffset,
		Filters: models.Filters{
			DocumentTypes: searchTypes,
			Jurisdictions: searchJurisdictions,
			Concepts:      searchConcepts,
		},
	}
	var err error
	if q.Filters.DateFrom, err = parseDate(searchFrom); err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	if q.Filters.DateTo, err = parseDate(searchTo); err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	return q, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := buildSearchQuery(args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	response, err := a.engine.Search(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteSearchResults(cmd.OutOrStdout(), response, outputFormat())
}
