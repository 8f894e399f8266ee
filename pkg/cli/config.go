package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kiln/pkg/adapter"
	"github.com/m-mizutani/kiln/pkg/interfaces"
	"github.com/m-mizutani/kiln/pkg/repository"
	"github.com/m-mizutani/kiln/pkg/service/capability"
	"github.com/m-mizutani/kiln/pkg/service/expander"
	"github.com/m-mizutani/kiln/pkg/service/memory"
	"github.com/m-mizutani/kiln/pkg/service/tagger"
	"github.com/m-mizutani/kiln/pkg/service/vector"
	"github.com/m-mizutani/kiln/pkg/usecase/creation"
	"github.com/m-mizutani/kiln/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	configPath string
	logLevel   string
	logFormat  string
	userID     string
	dataDir    string

	// Repository
	repository string
	project    string
	database   string

	// Artifact storage
	storage      string
	outputDir    string
	bucket       string
	bucketPrefix string

	// Remote apps
	imageApp  string
	modelApp  string
	appDomain string
	timeout   time.Duration

	// Language model
	expander        string
	embedder        string
	anthropicAPIKey string
	claudeModel     string
	openaiAPIKey    string
	openaiModel     string
	geminiProject   string
	geminiLocation  string

	policyDir string
}

// fileConfig is the optional YAML configuration file
type fileConfig struct {
	Apps struct {
		Image string `yaml:"image"`
		Model string `yaml:"model"`
	} `yaml:"apps"`
	AppDomain string `yaml:"app_domain"`
	MCP       struct {
		Servers []capability.MCPServerConfig `yaml:"servers"`
	} `yaml:"mcp"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file with app ids and MCP servers",
			Sources:     cli.EnvVars("KILN_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("KILN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("KILN_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID owning creations",
			Value:       "default",
			Sources:     cli.EnvVars("KILN_USER"),
			Destination: &cfg.userID,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for the local catalog, index and artifacts",
			Value:       ".kiln",
			Sources:     cli.EnvVars("KILN_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "repository",
			Usage:       "Catalog backend (file, firestore)",
			Value:       "file",
			Sources:     cli.EnvVars("KILN_REPOSITORY"),
			Destination: &cfg.repository,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("KILN_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("KILN_FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "embedder",
			Usage:       "Embedding backend for similarity search (hash, gemini)",
			Value:       "hash",
			Sources:     cli.EnvVars("KILN_EMBEDDER"),
			Destination: &cfg.embedder,
		},
	}
}

// generateFlags returns flags needed to run the pipeline
func generateFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage",
			Usage:       "Artifact storage (local, gcs)",
			Value:       "local",
			Sources:     cli.EnvVars("KILN_STORAGE"),
			Destination: &cfg.storage,
		},
		&cli.StringFlag{
			Name:        "output-dir",
			Usage:       "Directory for generated artifacts (default: <data-dir>/outputs)",
			Sources:     cli.EnvVars("KILN_OUTPUT_DIR"),
			Destination: &cfg.outputDir,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for generated artifacts",
			Sources:     cli.EnvVars("KILN_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "bucket-prefix",
			Usage:       "Object prefix in the Cloud Storage bucket",
			Value:       "kiln",
			Sources:     cli.EnvVars("KILN_BUCKET_PREFIX"),
			Destination: &cfg.bucketPrefix,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego tagging policies",
			Sources:     cli.EnvVars("KILN_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// appFlags returns flags selecting the remote generative apps
func appFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "image-app",
			Usage:       "Text-to-image app ID (default: " + creation.DefaultImageApp + ")",
			Sources:     cli.EnvVars("KILN_IMAGE_APP"),
			Destination: &cfg.imageApp,
		},
		&cli.StringFlag{
			Name:        "model-app",
			Usage:       "Image-to-3D app ID (default: " + creation.DefaultModelApp + ")",
			Sources:     cli.EnvVars("KILN_MODEL_APP"),
			Destination: &cfg.modelApp,
		},
		&cli.StringFlag{
			Name:        "app-domain",
			Usage:       "Domain suffix appended to bare app IDs (default: " + capability.DefaultAppDomain + ")",
			Sources:     cli.EnvVars("KILN_APP_DOMAIN"),
			Destination: &cfg.appDomain,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of one remote app execution",
			Value:       capability.DefaultTimeout,
			Sources:     cli.EnvVars("KILN_TIMEOUT"),
			Destination: &cfg.timeout,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "expander",
			Usage:       "Prompt expander (none, gemini, claude, openai)",
			Value:       "none",
			Sources:     cli.EnvVars("KILN_EXPANDER"),
			Destination: &cfg.expander,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model used for prompt expansion",
			Sources:     cli.EnvVars("KILN_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model used for prompt expansion",
			Sources:     cli.EnvVars("KILN_OPENAI_MODEL"),
			Destination: &cfg.openaiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.NewWithFormat(cfg.logLevel, logging.Format(cfg.logFormat), os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// loadFile reads the config file and fills values not given by flags
func (cfg *config) loadFile() (*fileConfig, error) {
	var fc fileConfig
	if cfg.configPath != "" {
		data, err := os.ReadFile(cfg.configPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
		}
	}

	if cfg.imageApp == "" {
		cfg.imageApp = fc.Apps.Image
	}
	if cfg.modelApp == "" {
		cfg.modelApp = fc.Apps.Model
	}
	if cfg.appDomain == "" {
		cfg.appDomain = fc.AppDomain
	}
	if cfg.imageApp == "" {
		cfg.imageApp = creation.DefaultImageApp
	}
	if cfg.modelApp == "" {
		cfg.modelApp = creation.DefaultModelApp
	}
	if cfg.appDomain == "" {
		cfg.appDomain = capability.DefaultAppDomain
	}

	return &fc, nil
}

// cleanup collects release functions of created resources
type cleanup []func()

func (c *cleanup) add(f func()) {
	*c = append(*c, f)
}

func (c cleanup) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context, done *cleanup) (repository.Repository, error) {
	switch cfg.repository {
	case "file":
		repo, err := repository.NewFile(filepath.Join(cfg.dataDir, "creations.jsonl"))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open catalog")
		}
		return repo, nil

	case "firestore":
		if cfg.project == "" {
			return nil, goerr.New("project is required for firestore repository")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required for firestore repository")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		done.add(func() {
			if err := repo.Close(); err != nil {
				logging.From(ctx).Warn("failed to close firestore client", "error", err)
			}
		})
		return repo, nil

	default:
		return nil, goerr.New("unsupported repository", goerr.V("repository", cfg.repository))
	}
}

// newMemory creates the memory store over the configured repository
func (cfg *config) newMemory(ctx context.Context, done *cleanup) (*memory.Store, error) {
	repo, err := cfg.newRepository(ctx, done)
	if err != nil {
		return nil, err
	}
	store, err := memory.New(repo)
	if err != nil {
		return nil, err
	}
	done.add(store.Close)
	return store, nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	switch cfg.storage {
	case "local":
		dir := cfg.outputDir
		if dir == "" {
			dir = filepath.Join(cfg.dataDir, "outputs")
		}
		return adapter.NewLocalStorage(dir)

	case "gcs":
		if cfg.bucket == "" {
			return nil, goerr.New("bucket name is required for gcs storage")
		}
		storage, err := adapter.NewStorage(ctx, cfg.bucket, cfg.bucketPrefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		return storage, nil

	default:
		return nil, goerr.New("unsupported storage", goerr.V("storage", cfg.storage))
	}
}

// newClaude creates a new Claude adapter instance
func (cfg *config) newClaude() (adapter.Claude, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, goerr.New("anthropic-api-key is required")
	}
	var opts []adapter.ClaudeOption
	if cfg.claudeModel != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.claudeModel))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...), nil
}

// newOpenAI creates a new OpenAI adapter instance
func (cfg *config) newOpenAI() (adapter.OpenAI, error) {
	if cfg.openaiAPIKey == "" {
		return nil, goerr.New("openai-api-key is required")
	}
	var opts []adapter.OpenAIOption
	if cfg.openaiModel != "" {
		opts = append(opts, adapter.WithOpenAIModel(cfg.openaiModel))
	}
	return adapter.NewOpenAI(cfg.openaiAPIKey, opts...), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newExpander creates the configured prompt expander
func (cfg *config) newExpander(ctx context.Context) (interfaces.PromptExpander, error) {
	switch cfg.expander {
	case "", "none":
		return expander.Disabled{}, nil

	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		return expander.NewGemini(gemini), nil

	case "claude":
		claude, err := cfg.newClaude()
		if err != nil {
			return nil, err
		}
		return expander.NewChat(claude), nil

	case "openai":
		client, err := cfg.newOpenAI()
		if err != nil {
			return nil, err
		}
		return expander.NewChat(client), nil

	default:
		return nil, goerr.New("unsupported expander", goerr.V("expander", cfg.expander))
	}
}

// newIndex opens the vector index. Each embedder has its own collection
// directory since vectors of different models are not comparable.
func (cfg *config) newIndex(ctx context.Context) (*vector.Index, error) {
	var embedder vector.Embedder
	switch cfg.embedder {
	case "hash":
		embedder = vector.NewHashEmbedder(vector.DefaultHashDimensions)

	case "gemini":
		gemini, err := cfg.newGemini(ctx)
		if err != nil {
			return nil, err
		}
		embedder = vector.NewGeminiEmbedder(gemini, vector.DefaultGeminiDimensions)

	default:
		return nil, goerr.New("unsupported embedder", goerr.V("embedder", cfg.embedder))
	}

	return vector.NewIndex(embedder, filepath.Join(cfg.dataDir, "index", cfg.embedder))
}

// newRegistry connects transports for remote apps. MCP servers that fail to
// connect are skipped with a warning.
func (cfg *config) newRegistry(ctx context.Context, done *cleanup) (*capability.Registry, error) {
	fc, err := cfg.loadFile()
	if err != nil {
		return nil, err
	}
	logger := logging.From(ctx)

	httpTransport := capability.NewHTTPTransport(capability.WithAppDomain(cfg.appDomain))

	var mcpTransport capability.Transport
	if len(fc.MCP.Servers) > 0 {
		t := capability.NewMCPTransport()
		done.add(func() {
			if err := t.Close(); err != nil {
				logger.Warn("failed to close MCP sessions", "error", err)
			}
		})
		for _, server := range fc.MCP.Servers {
			if err := t.Connect(ctx, server); err != nil {
				logger.Warn("failed to connect to MCP server", "server", server.Name, "error", err)
				continue
			}
			logger.Info("connected to MCP server", "server", server.Name)
		}
		if len(t.Servers()) > 0 {
			mcpTransport = t
		}
	}

	return capability.NewRegistry(capability.NewMux(httpTransport, mcpTransport)), nil
}

// newUseCase wires the creation pipeline
func (cfg *config) newUseCase(ctx context.Context, done *cleanup) (*creation.UseCase, *capability.Registry, error) {
	store, err := cfg.newMemory(ctx, done)
	if err != nil {
		return nil, nil, err
	}

	index, err := cfg.newIndex(ctx)
	if err != nil {
		return nil, nil, err
	}

	storage, err := cfg.newStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	exp, err := cfg.newExpander(ctx)
	if err != nil {
		return nil, nil, err
	}

	registry, err := cfg.newRegistry(ctx, done)
	if err != nil {
		return nil, nil, err
	}
	stub := capability.NewStub(registry, capability.WithTimeout(cfg.timeout))

	opts := []creation.Option{
		creation.WithApps(cfg.imageApp, cfg.modelApp),
		creation.WithExpander(exp),
	}

	policy, err := tagger.LoadPolicy(ctx, cfg.policyDir)
	if err != nil {
		return nil, nil, err
	}
	if policy != nil {
		opts = append(opts, creation.WithTagPolicy(policy))
	}

	return creation.New(store, index, stub, storage, opts...), registry, nil
}

// newQueryUseCase wires the use case for commands that only read or edit the
// catalog. Remote apps and the expander are not connected.
func (cfg *config) newQueryUseCase(ctx context.Context, done *cleanup) (*creation.UseCase, error) {
	store, err := cfg.newMemory(ctx, done)
	if err != nil {
		return nil, err
	}

	index, err := cfg.newIndex(ctx)
	if err != nil {
		return nil, err
	}

	return creation.New(store, index, nil, nil), nil
}
