package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/ai/gemini"
	"github.com/applypilot/applypilot/internal/docgen"
	"github.com/applypilot/applypilot/internal/eligibility"
	"github.com/applypilot/applypilot/internal/history"
	"github.com/applypilot/applypilot/internal/job"
	"github.com/applypilot/applypilot/internal/logger"
	"github.com/applypilot/applypilot/internal/pipeline"
	"github.com/applypilot/applypilot/internal/resume"
	"github.com/applypilot/applypilot/internal/roles"
	"github.com/applypilot/applypilot/internal/scoring"
	"github.com/applypilot/applypilot/internal/secrets"
	"github.com/applypilot/applypilot/internal/storage"
	"github.com/applypilot/applypilot/internal/storage/drive"
	"github.com/applypilot/applypilot/internal/storage/local"
	"github.com/applypilot/applypilot/internal/tailoring"
	"github.com/applypilot/applypilot/internal/tracker"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate job postings and prepare applications for the promising ones",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("jobs", "", "a JSON file with job postings to evaluate")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before spending AI calls")
	runCmd.Flags().BoolP("force", "f", false, "reprocess postings that already have a terminal outcome")
	runCmd.Flags().Int("max-jobs", 0, "cap the number of postings evaluated in one run")
	runCmd.Flags().Int("workers", 0, "number of postings processed concurrently")

	// A single posting can be supplied on the command line instead of a file.
	runCmd.Flags().String("title", "", "job title for a one-off posting")
	runCmd.Flags().String("company", "", "company for a one-off posting")
	runCmd.Flags().String("location", "", "location for a one-off posting")
	runCmd.Flags().String("link", "", "link for a one-off posting")
	runCmd.Flags().String("description-file", "", "file with the description for a one-off posting")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	config.defaults()

	logger.Info("starting applypilot", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Resume == nil || config.Resume.TemplateFile == "" {
		logger.Fatal("a base resume template is required under resume.template-file")
	}
	if len(config.Roles) == 0 {
		logger.Fatal("at least one role category is required under roles")
	}

	categories, err := roles.ParseCategories(config.Roles)
	if err != nil {
		logger.Fatal("parsing role categories", zap.Error(err))
	}
	catalog := roles.NewCatalog(categories)

	templates, err := loadTemplates(config, categories)
	if err != nil {
		logger.Fatal("loading resume templates", zap.Error(err))
	}

	client, err := newGeminiClient(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal(
			"building the gemini client",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY_FILE environment variable or the 'ai.gemini.api-key-file' key in the configuration file"),
		)
	}

	store, err := newStore(ctx, config.Storage, logger)
	if err != nil {
		logger.Fatal("building the storage backend", zap.Error(err))
	}

	track, err := tracker.New(config.Tracker.File, logger)
	if err != nil {
		logger.Fatal("opening the tracker", zap.Error(err))
	}

	hist, err := history.Open(config.Tracker.History, logger)
	if err != nil {
		logger.Fatal("opening the history store", zap.Error(err))
	}
	defer hist.Close()

	records, err := fetchJobs(cmd, logger)
	if err != nil {
		logger.Fatal("loading job postings", zap.Error(err))
	}

	if len(records) == 0 {
		logger.Info("exiting", zap.String("reason", "no job postings supplied"))
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		if !confirm(len(records)) {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	p := pipeline.New(
		eligibility.New(*config.Eligibility, logger),
		roles.NewClassifier(catalog, client, config.Thresholds.Similarity, logger),
		tailoring.New(client, logger),
		scoring.New(client, config.Thresholds.Fit, logger),
		docgen.New(docgen.NewSofficeConverter(), logger),
		store,
		track,
		hist,
		templates,
		pipeline.Config{
			Workers: intFlag(cmd, "workers", config.Run.Workers),
			MaxJobs: intFlag(cmd, "max-jobs", config.Run.MaxJobs),
			Force:   cmd.Flag("force").Value.String() == "true",
		},
		logger,
	)

	summary, err := p.Run(ctx, job.StaticSource(records))
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	fmt.Printf("run %s: %d processed, %d rejected, %d ignored, %d errors, %d skipped\n",
		summary.RunID, summary.Processed, summary.Rejected, summary.Ignored, summary.Errors, summary.Skipped)
}

func confirm(count int) bool {
	prompt := promptui.Select{
		Label: fmt.Sprintf("Evaluate %d posting(s)? This spends AI calls", count),
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		return false
	}
	return action == PromptYes
}

// fetchJobs builds the posting batch from either the jobs file or the
// one-off flags.
func fetchJobs(cmd *cobra.Command, logger *zap.Logger) ([]*job.Record, error) {
	jobsFile := cmd.Flag("jobs").Value.String()
	title := cmd.Flag("title").Value.String()

	switch {
	case jobsFile != "" && title != "":
		return nil, fmt.Errorf("--jobs and --title are mutually exclusive")
	case jobsFile != "":
		return job.NewFileSource(jobsFile, logger).Fetch()
	case title != "":
		rec := &job.Record{
			Source:   "manual",
			Title:    title,
			Company:  cmd.Flag("company").Value.String(),
			Location: cmd.Flag("location").Value.String(),
			Link:     cmd.Flag("link").Value.String(),
		}
		if descFile := cmd.Flag("description-file").Value.String(); descFile != "" {
			desc, err := os.ReadFile(descFile)
			if err != nil {
				return nil, fmt.Errorf("reading description file: %w", err)
			}
			rec.Description = string(desc)
		}
		return []*job.Record{rec}, nil
	default:
		return nil, fmt.Errorf("either --jobs or --title is required")
	}
}

func loadTemplates(config *Config, categories []roles.Category) (*pipeline.Templates, error) {
	base, err := resume.Load(config.Resume.TemplateFile)
	if err != nil {
		return nil, fmt.Errorf("base template: %w", err)
	}

	templates := &pipeline.Templates{
		Default:    base,
		ByCategory: map[string]*resume.Template{},
	}

	for _, category := range categories {
		if category.Template == "" {
			continue
		}
		tpl, err := resume.Load(category.Template)
		if err != nil {
			return nil, fmt.Errorf("template for %s: %w", category.Name, err)
		}
		templates.ByCategory[category.Name] = tpl
	}

	return templates, nil
}

func newGeminiClient(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Client, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required under ai.gemini")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	clientLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
	)

	return gemini.New(ctx, gemini.Config{
		APIKey:         apiKey,
		Model:          cfg.Gemini.Model,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
		MaxRetries:     cfg.Gemini.MaxRetries,
	}, clientLogger)
}

func newStore(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case "local":
		return local.New(cfg.Local.Root, logger)
	case "drive":
		if cfg.Drive == nil {
			return nil, fmt.Errorf("drive configuration is required under storage.drive")
		}
		return drive.New(ctx, &drive.Config{
			CredentialsFile: cfg.Drive.CredentialsFile,
			ParentFolderID:  cfg.Drive.ParentFolderID,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if cmd.Flag(name).Changed {
		if v, err := cmd.Flags().GetInt(name); err == nil {
			return v
		}
	}
	return fallback
}
