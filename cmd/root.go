package cmd

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/applypilot/applypilot/internal/eligibility"
)

const (
	app = "applypilot"

	defaultSimilarityThreshold = 0.80
	defaultFitThreshold        = 8.5
)

type Config struct {
	Eligibility *eligibility.Config `mapstructure:"eligibility"`
	// Roles is decoded separately via roles.ParseCategories to keep the
	// ordered catalog semantics.
	Roles      []map[string]any  `mapstructure:"roles"`
	Resume     *ResumeConfig     `mapstructure:"resume"`
	Thresholds *ThresholdsConfig `mapstructure:"thresholds"`
	Storage    *StorageConfig    `mapstructure:"storage"`
	Tracker    *TrackerConfig    `mapstructure:"tracker"`
	Run        *RunConfig        `mapstructure:"run"`
	AI         *AIConfig         `mapstructure:"ai"`
}

type ResumeConfig struct {
	TemplateFile string `mapstructure:"template-file"`
}

type ThresholdsConfig struct {
	Similarity float64 `mapstructure:"similarity"`
	Fit        float64 `mapstructure:"fit"`
}

type StorageConfig struct {
	Backend string              `mapstructure:"backend"`
	Local   *LocalStorageConfig `mapstructure:"local"`
	Drive   *DriveStorageConfig `mapstructure:"drive"`
}

type LocalStorageConfig struct {
	Root string `mapstructure:"root"`
}

type DriveStorageConfig struct {
	CredentialsFile string `mapstructure:"credentials-file"`
	ParentFolderID  string `mapstructure:"parent-folder-id"`
}

type TrackerConfig struct {
	File    string `mapstructure:"file"`
	History string `mapstructure:"history"`
}

type RunConfig struct {
	Workers int `mapstructure:"workers"`
	MaxJobs int `mapstructure:"max-jobs"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "applypilot decides which job postings deserve a tailored application and prepares the documents",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is applypilot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// A .env file next to the binary may carry GEMINI_API_KEY_FILE and
	// friends; a missing file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}

	return config, nil
}

// defaults fills the optional sections so the run command can rely on
// non-nil pointers and sane thresholds.
func (c *Config) defaults() {
	if c.Thresholds == nil {
		c.Thresholds = &ThresholdsConfig{}
	}
	if c.Thresholds.Similarity <= 0 {
		c.Thresholds.Similarity = defaultSimilarityThreshold
	}
	if c.Thresholds.Fit <= 0 {
		c.Thresholds.Fit = defaultFitThreshold
	}
	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Local == nil {
		c.Storage.Local = &LocalStorageConfig{Root: "applications"}
	}
	if c.Tracker == nil {
		c.Tracker = &TrackerConfig{}
	}
	if c.Tracker.File == "" {
		c.Tracker.File = "applications.csv"
	}
	if c.Tracker.History == "" {
		c.Tracker.History = "applypilot.db"
	}
	if c.Run == nil {
		c.Run = &RunConfig{}
	}
	if c.Eligibility == nil {
		c.Eligibility = &eligibility.Config{}
	}
}
