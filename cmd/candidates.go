package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/candidates"
	"github.com/spigell/strivebot/internal/source"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Load the candidate pool and print it the way the matcher sees it",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		logger, config := setup()

		pool := candidates.NewRepository()
		file := source.NewCandidateFile(config.Candidates, newReader(config, logger), logger)
		if err := pool.Load(ctx, file); err != nil {
			logger.Fatal("loading candidates", zap.Error(err))
		}

		fmt.Fprint(cmd.OutOrStdout(), pool.DescribeAll())
		logger.Info("candidates loaded", zap.Int("count", pool.Len()))
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
}
