package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/strivebot/internal/batch"
	"github.com/spigell/strivebot/internal/jobs"
	"github.com/spigell/strivebot/internal/logger"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptReportByCompanies   = "Report by companies"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all postings to exclude file"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match candidates to the job postings and write motivation letters",
	// run and schedule share the export key, so it is bound for the called command only.
	PreRun: func(cmd *cobra.Command, _ []string) {
		viper.BindPFlag("export.enabled", cmd.Flags().Lookup("export"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("rematch", "f", false, "process postings that already have stored matches")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before processing postings")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")
	runCmd.Flags().IntP("workers", "w", 0, "number of postings processed at once")
	runCmd.Flags().Bool("regenerate", false, "write new letters even when stored ones exist")
	runCmd.Flags().Bool("export", false, "export processed postings to delimited files")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("batch.workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("batch.regenerate", runCmd.Flags().Lookup("regenerate"))
}

// setup builds the logger and the config shared by every command.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return logger, config
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup()

	logger.Info("starting the strivebot", zap.String("version", version))

	a, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing the application", zap.Error(err),
			zap.String("hint", "check the ai, database and events sections of the configuration file"),
		)
	}
	defer a.Close()

	if err := a.loadCandidates(ctx); err != nil {
		logger.Fatal("loading candidates", zap.Error(err))
	}
	if a.pool.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates found"))
		return
	}

	postings, err := a.loadJobs(ctx)
	if err != nil {
		logger.Fatal("loading postings", zap.Error(err))
	}
	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings found"))
		return
	}

	rematch := cmd.Flag("rematch").Value.String() == "true"
	postings, err = a.filters(rematch).RunFilters(ctx, postings)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	items := []string{PromptYes, PromptNo, PromptReportByCompanies, PromptPostingsToFile}
	if strings.TrimSpace(config.ExcludeFile) != "" {
		items = append(items, PromptAppendToExcludeFile)
	}
	prompt := promptui.Select{
		Label: "Proceed?",
		Items: items,
	}

	action := PromptYes
	for {
		if cmd.Flag("auto-approve").Value.String() == "false" {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of postings", zap.Int("count", postings.Len()))

		if err := handleAction(ctx, action, a, postings); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, a *application, postings *jobs.Postings) error {
	switch action {
	case PromptYes:
		last, err := a.runBatch(ctx, postings)
		if err != nil {
			return err
		}
		if last.Type == batch.EventCanceled {
			a.logger.Info("exiting", zap.String("reason", "batch canceled"))
		}
		return errExit
	case PromptNo:
		a.logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(postings.ReportByCompany(), "", "  ")
		a.logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		a.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excluded, err := jobs.GetExcludedPostingsFromFile(a.config.ExcludeFile)
		if err != nil {
			return err
		}

		excluded.Append(postings.ToExcluded(jobs.ExcludeActorUser, ""))
		if err := excluded.ToFile(a.config.ExcludeFile); err != nil {
			return err
		}

		a.logger.Info("appended to exclude file", zap.String("filename", a.config.ExcludeFile))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}
