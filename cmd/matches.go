package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/store"
)

var matchesCmd = &cobra.Command{
	Use:   "matches [job-id]",
	Short: "Show stored postings, or the matches and letters of one posting",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		showMatches(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(matchesCmd)
}

func showMatches(out io.Writer, args []string) {
	ctx := context.Background()
	logger, config := setup()

	st, err := newStore(ctx, config.Database, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	if len(args) == 0 {
		postings, err := st.ListJobs(ctx)
		if err != nil {
			logger.Fatal("listing postings", zap.Error(err))
		}
		for _, posting := range postings {
			matched, err := st.MatchesForJob(ctx, posting.ID)
			if err != nil {
				logger.Fatal("getting matches", zap.String("job_id", posting.ID), zap.Error(err))
			}
			fmt.Fprintf(out, "%s\t%s\t%s\t%d\n", posting.ID, posting.Position, posting.Company, len(matched))
		}
		return
	}

	posting, ok, err := store.LoadJob(ctx, st, args[0])
	if err != nil {
		logger.Fatal("loading posting", zap.String("job_id", args[0]), zap.Error(err))
	}
	if !ok {
		logger.Fatal("posting not found", zap.String("job_id", args[0]))
	}

	printPosting(out, posting)
}

func printPosting(out io.Writer, posting *jobs.Posting) {
	fmt.Fprintf(out, "%s at %s (%s)\n", posting.Position, posting.Company, posting.ID)
	if posting.URL != "" {
		fmt.Fprintln(out, posting.URL)
	}
	if posting.Submitter != nil {
		fmt.Fprintf(out, "Submitter: %s\n", posting.Submitter)
	}

	for _, candidate := range posting.Candidates {
		fmt.Fprintf(out, "\n== %s ==\n", candidate.Profile.Name)
		if strings.TrimSpace(candidate.Motivation) == "" {
			fmt.Fprintln(out, "(no motivation letter yet)")
			continue
		}
		fmt.Fprintln(out, candidate.Motivation)
	}
}
