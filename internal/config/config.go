package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReleaseVersion is reported by --version and the HTTP API
const ReleaseVersion = "1.2.0"

const envPrefix = "MATCHQUIZ"

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

// Update delivery modes
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds application configuration
type Config struct {
	TelegramToken  string
	QuestionsPath  string
	Store          string
	DatabasePath   string
	DataDir        string
	CodeDigits     int
	Mode           string
	PublicURL      string
	Bind           string
	Port           int
	SessionTTL     time.Duration
	ExpiryInterval time.Duration
	Verbose        bool
	LogJSON        bool
}

// legacyEnv maps flags to the variable names older deployments already set
var legacyEnv = map[string]string{
	"token":      "BOT_TOKEN",
	"questions":  "QUESTIONS_CSV",
	"port":       "PORT",
	"public-url": "RENDER_EXTERNAL_URL",
}

// Validate rejects settings the bot cannot run with
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("bot token is required (--token or BOT_TOKEN)")
	}
	if c.QuestionsPath == "" {
		return errors.New("questions file is required")
	}

	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DatabasePath == "" {
			return errors.New("--db is required for the sqlite store")
		}
	case StoreFile:
		if c.DataDir == "" {
			return errors.New("--data-dir is required for the file store")
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or file)", c.Store)
	}

	if c.CodeDigits < 4 || c.CodeDigits > 6 {
		return fmt.Errorf("invalid code length (must be between 4-6 inclusive): %d", c.CodeDigits)
	}

	switch c.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.PublicURL == "" {
			return errors.New("webhook mode needs --public-url (or RENDER_EXTERNAL_URL)")
		}
	default:
		return fmt.Errorf("unknown mode %q (want polling or webhook)", c.Mode)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("session TTL cannot be negative: %s", c.SessionTTL)
	}
	if c.SessionTTL > 0 && c.ExpiryInterval <= 0 {
		return fmt.Errorf("expiry interval must be positive: %s", c.ExpiryInterval)
	}
	return nil
}

// WebhookURL is where Telegram posts updates in webhook mode
func (c *Config) WebhookURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/webhook"
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

// NewCommand builds the root command. Flags fall back to MATCHQUIZ_* variables,
// the legacy names in legacyEnv and finally a .env file in the working directory.
func NewCommand(cfg *Config, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "match-quiz",
		Short:   "Telegram bot that pairs two people on a quiz and shows how their answers match.",
		Args:    cobra.ExactArgs(0),
		Version: ReleaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.TelegramToken, "token", "t", "", "telegram bot token (env: MATCHQUIZ_TOKEN, BOT_TOKEN)")
	fs.StringVarP(&cfg.QuestionsPath, "questions", "q", "questions.csv", "question file, .csv, .json or .yaml (env: MATCHQUIZ_QUESTIONS, QUESTIONS_CSV)")
	fs.StringVar(&cfg.Store, "store", StoreMemory, "session store: memory, sqlite or file (env: MATCHQUIZ_STORE)")
	fs.StringVar(&cfg.DatabasePath, "db", "./match_quiz.db", "sqlite database path (env: MATCHQUIZ_DB)")
	fs.StringVar(&cfg.DataDir, "data-dir", "./sessions", "directory for the file store (env: MATCHQUIZ_DATA_DIR)")
	fs.IntVar(&cfg.CodeDigits, "code-digits", 4, "length of pairing codes, 4-6 (env: MATCHQUIZ_CODE_DIGITS)")
	fs.StringVarP(&cfg.Mode, "mode", "m", ModePolling, "update delivery: polling or webhook (env: MATCHQUIZ_MODE)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "external base URL for the webhook (env: MATCHQUIZ_PUBLIC_URL, RENDER_EXTERNAL_URL)")
	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: MATCHQUIZ_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: MATCHQUIZ_PORT, PORT)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 24*time.Hour, "time before idle sessions are deleted, 0 keeps them (env: MATCHQUIZ_SESSION_TTL)")
	fs.DurationVar(&cfg.ExpiryInterval, "expiry-interval", 10*time.Minute, "how often idle sessions are checked (env: MATCHQUIZ_EXPIRY_INTERVAL)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: MATCHQUIZ_VERBOSE)")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "log as JSON (env: MATCHQUIZ_LOG_JSON)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		envs := []string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))}
		if legacy, ok := legacyEnv[f.Name]; ok {
			envs = append(envs, legacy)
		}
		_ = v.BindEnv(append([]string{f.Name}, envs...)...)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("match-quiz v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
