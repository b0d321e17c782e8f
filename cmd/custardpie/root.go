package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zacy-Sokach/CustardPie/internal/api"
	"github.com/Zacy-Sokach/CustardPie/internal/config"
	"github.com/Zacy-Sokach/CustardPie/internal/tui"
	"github.com/Zacy-Sokach/CustardPie/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errNotTerminal 交互界面需要终端
var errNotTerminal = errors.New("CustardPie 需要在交互式终端中运行，脚本中请使用子命令")

// app 保存一次命令执行所需的配置、日志和客户端
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.Client

	// 全局参数，非空时覆盖配置文件
	serverURL     string
	generateURL   string
	generateModel string
	pollInterval  time.Duration
	verbose       bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "custardpie",
		Short: "CustardPie - customize LLM models from the terminal",
		Long: `CustardPie is a SaaS platform that provides a simple way to customize LLM models per your needs.

Run without arguments to open the interactive workspace: pick or create a model,
upload RAG and fine-tune material, and query the model.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorkspace()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.serverURL, "server", "", "model customization service URL (overrides config)")
	flags.StringVar(&a.generateURL, "generate-url", "", "generate service URL (overrides config)")
	flags.StringVar(&a.generateModel, "generate-model", "", "model used by generate (overrides config)")
	flags.DurationVar(&a.pollInterval, "poll-interval", 0, "interval between model list attempts (overrides config)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "write debug logs")

	root.AddCommand(
		a.newGenerateCmd(),
		a.newModelsCmd(),
		a.newUploadCmd(),
		a.newQueryCmd(),
		a.newVersionCmd(),
		a.newConfigCmd(),
	)
	return root
}

// setup 加载配置，应用命令行覆盖，创建日志和客户端
func (a *app) setup() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	if a.serverURL != "" {
		cfg.ServiceURL = a.serverURL
	}
	if a.generateURL != "" {
		cfg.GenerateURL = a.generateURL
	}
	if a.generateModel != "" {
		cfg.GenerateModel = a.generateModel
	}
	if a.verbose {
		cfg.Debug = true
	}
	a.cfg = cfg

	a.logger = zap.NewNop()
	if logPath, err := cfg.LogPath(); err == nil {
		a.logger = utils.MustFileLogger(logPath, cfg.Debug)
	}

	a.client = api.NewClient(api.Endpoints{
		ServiceURL:  cfg.ServiceURL,
		GenerateURL: cfg.GenerateURL,
	}, api.WithLogger(a.logger), api.WithTimeout(cfg.RequestTimeout()))

	a.logger.Debug("config loaded",
		zap.String("service_url", cfg.ServiceURL),
		zap.String("generate_url", cfg.GenerateURL),
		zap.String("generate_model", cfg.GenerateModel))
	return nil
}

func (a *app) interval() time.Duration {
	if a.pollInterval > 0 {
		return a.pollInterval
	}
	return a.cfg.PollInterval()
}

func (a *app) runWorkspace() error {
	if !isTerminal() {
		return errNotTerminal
	}

	model := tui.NewModel(a.client, tui.Options{
		PollInterval: a.interval(),
		Logger:       a.logger,
		ServiceURL:   a.cfg.ServiceURL,
	})
	return runProgram(model)
}

func runProgram(model tea.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("程序运行错误: %w", err)
	}
	return nil
}
