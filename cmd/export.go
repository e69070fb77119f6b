package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/export"
	"github.com/spigell/strivebot/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored postings and their candidates to delimited files",
	Run: func(_ *cobra.Command, _ []string) {
		runExport()
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("dir", "o", "", "output directory")
	exportCmd.Flags().Bool("force", false, "rewrite files instead of appending a row")

	viper.BindPFlag("export.dir", exportCmd.Flags().Lookup("dir"))
	viper.BindPFlag("export.force", exportCmd.Flags().Lookup("force"))
}

func runExport() {
	ctx := context.Background()
	logger, config := setup()

	st, err := newStore(ctx, config.Database, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer st.Close()

	postings, err := st.ListJobs(ctx)
	if err != nil {
		logger.Fatal("listing postings", zap.Error(err))
	}

	writer := export.NewWriter(config.Export.Dir, config.Export.Force, logger)
	written := 0
	for _, listed := range postings {
		posting, ok, err := store.LoadJob(ctx, st, listed.ID)
		if err != nil {
			logger.Fatal("loading posting", zap.String("job_id", listed.ID), zap.Error(err))
		}
		if !ok || len(posting.Candidates) == 0 {
			continue
		}

		if _, err := writer.Write(posting); err != nil {
			logger.Fatal("exporting posting", zap.String("job_id", posting.ID), zap.Error(err))
		}
		written++
	}

	logger.Info("export finished", zap.Int("postings", written), zap.String("dir", config.Export.Dir))
}
