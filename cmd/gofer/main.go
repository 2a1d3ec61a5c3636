package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gofer/internal/config"
	"gofer/internal/gemini"
	"gofer/internal/logging"
	"gofer/internal/session"
)

var (
	// Global flags
	verbose   bool
	workspace string
	modelFlag string
	project   string
	yolo      bool
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gofer",
	Short: "gofer - an agentic CLI assistant for Gemini",
	Long: `gofer is an agentic command-line assistant: it sends your request to
Gemini, executes the tools the model asks for (shell, file edits, search,
memory) with your approval, feeds results back, and repeats until the model
produces a final answer.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Execute a single prompt and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "project directory the agent operates in")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "model to use (default from settings)")
	rootCmd.PersistentFlags().StringVarP(&project, "project", "p", "", "cloud project ID")
	rootCmd.PersistentFlags().BoolVar(&yolo, "yolo", false, "auto-approve all tool confirmations")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-request network timeout")
	rootCmd.AddCommand(runCmd)
}

// newSession assembles config, client and session from flags and settings.
func newSession() (*session.Session, *config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if project != "" {
		cfg.Project = project
	}
	if verbose {
		cfg.Debug = true
	}

	if err := logging.Initialize(cfg.TargetDir, cfg.Debug); err != nil {
		return nil, nil, err
	}
	logging.Boot("gofer starting (workspace=%s model=%s)", cfg.TargetDir, cfg.Model)

	token := os.Getenv("GOFER_TOKEN")
	if token == "" {
		return nil, nil, fmt.Errorf("GOFER_TOKEN is not set; export an OAuth access token for the Code Assist API")
	}
	clientCfg := gemini.DefaultConfig()
	clientCfg.ProjectID = cfg.Project
	clientCfg.Timeout = timeout
	if cfg.Endpoint != "" {
		clientCfg.Endpoint = cfg.Endpoint
	}
	client := gemini.NewClient(clientCfg, gemini.StaticTokenSource(token))

	sess, err := session.New(client, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sess, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
