package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "strivebot"
)

type Config struct {
	Candidates  string          `mapstructure:"candidates"`
	Jobs        string          `mapstructure:"jobs"`
	ExcludeFile string          `mapstructure:"exclude-file"`
	UserAgent   string          `mapstructure:"user-agent"`
	Exclude     *ExcludeConfig  `mapstructure:"exclude"`
	Database    *DatabaseConfig `mapstructure:"database"`
	Events      *EventsConfig   `mapstructure:"events"`
	Export      *ExportConfig   `mapstructure:"export"`
	Batch       *BatchConfig    `mapstructure:"batch"`
	Schedule    *ScheduleConfig `mapstructure:"schedule"`
	Matching    *MatchingConfig `mapstructure:"matching"`
	Motivation  *struct {
		Agency string `mapstructure:"agency"`
	} `mapstructure:"motivation"`
	AI *AIConfig `mapstructure:"ai"`
}

type ExcludeConfig struct {
	Companies []string `mapstructure:"companies"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url" json:"-"`
	Migrate bool   `mapstructure:"migrate"`
}

type EventsConfig struct {
	RedisURL string `mapstructure:"redis-url" json:"-"`
	Channel  string `mapstructure:"channel"`
}

type ExportConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Force   bool   `mapstructure:"force"`
}

type BatchConfig struct {
	Workers    int  `mapstructure:"workers"`
	Regenerate bool `mapstructure:"regenerate"`
}

type ScheduleConfig struct {
	Spec       string `mapstructure:"spec"`
	RunOnStart bool   `mapstructure:"run-on-start"`
}

type MatchingConfig struct {
	RequireSkillOverlap bool `mapstructure:"require-skill-overlap"`
	Analyze             bool `mapstructure:"analyze"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "strivebot matches job postings to candidates and writes motivation letters for them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is strivebot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("candidates", "c", "", "candidates file path or URL")
	rootCmd.PersistentFlags().StringP("jobs", "J", "", "jobs file path or URL")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("candidates", rootCmd.PersistentFlags().Lookup("candidates"))
	viper.BindPFlag("jobs", rootCmd.PersistentFlags().Lookup("jobs"))

	setDefaults()

	for key, env := range map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"database.url":           "DATABASE_URL",
		"events.redis-url":       "REDIS_URL",
	} {
		if err := viper.BindEnv(key, "STRIVEBOT_"+envKey(key), env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}
}

func setDefaults() {
	viper.SetDefault("candidates", "candidates.csv")
	viper.SetDefault("jobs", "jobs.yaml")
	viper.SetDefault("exclude-file", "")
	viper.SetDefault("user-agent", "")
	viper.SetDefault("exclude.companies", []string{})
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.migrate", true)
	viper.SetDefault("events.redis-url", "")
	viper.SetDefault("events.channel", "strivebot:events")
	viper.SetDefault("export.enabled", false)
	viper.SetDefault("export.dir", "jobs")
	viper.SetDefault("export.force", false)
	viper.SetDefault("batch.workers", 1)
	viper.SetDefault("batch.regenerate", false)
	viper.SetDefault("schedule.spec", "@every 6h")
	viper.SetDefault("schedule.run-on-start", true)
	viper.SetDefault("matching.require-skill-overlap", true)
	viper.SetDefault("matching.analyze", true)
	viper.SetDefault("motivation.agency", "")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", 2*time.Minute)
	viper.SetDefault("ai.gemini.api-key", "")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.max-log-length", 512)
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func initConfig() {
	// The version command does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine, the environment may be set up already.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(strings.ToUpper(app))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Only an explicitly requested config file is mandatory.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
