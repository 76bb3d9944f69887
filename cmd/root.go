package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/daskuntal75/CareerCoPilot-sub001/internal/ai/gemini"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/logger"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/prompts"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/secrets"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/store"
	"github.com/daskuntal75/CareerCoPilot-sub001/internal/versions"
)

const (
	app          = "careergov"
	defaultOwner = "default"
)

type Config struct {
	Database string    `mapstructure:"database"`
	Owner    string    `mapstructure:"owner"`
	AI       *AIConfig `mapstructure:"ai"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "careergov is a cli for governing AI-authored career documents: prompt versions, approvals, experiments and feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext executes the root command with the given context so an
// interrupt cancels in-flight generation calls.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("database", "CAREERGOV_DB"); err != nil {
		log.Fatalf("binding CAREERGOV_DB environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is careergov.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// We can't proceed if an explicitly requested config file is broken.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// Every setting has a default, so a missing config file is fine.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	if strings.TrimSpace(config.Owner) == "" {
		config.Owner = defaultOwner
	}

	return config, nil
}

// setup builds the shared pieces every subcommand needs: a logger, the
// resolved config and the governance database.
func setup() (*zap.Logger, *Config, *gorm.DB) {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	db, err := store.Open(config.Database, zlog)
	if err != nil {
		zlog.Fatal("opening the governance database", zap.Error(err))
	}

	return zlog, config, db
}

// seedDefaults makes sure every catalog key has at least the built-in
// template before a command works with it.
func seedDefaults(ctx context.Context, vs *versions.Store, owner string, zlog *zap.Logger) {
	seeded, err := prompts.Seed(ctx, vs, owner)
	if err != nil {
		zlog.Fatal("seeding default prompt templates", zap.Error(err))
	}
	if len(seeded) > 0 {
		zlog.Info("seeded default prompt templates", zap.Strings("keys", seeded))
	}
}

func newGenerator(ctx context.Context, config *AIConfig, zlog *zap.Logger) (*gemini.Generator, error) {
	if config == nil || config.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required under the ai section")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: config.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithGenerationFields(zlog, "gemini", config.Gemini.Model)

	return gemini.New(ctx, apiKey, config.Gemini.Model, config.Gemini.MaxRetries, genLogger)
}
