// Package application wires configuration, the browser, the engine and the
// runners together for each entry point.
package application

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"browser-pilot/internal/agent"
	"browser-pilot/internal/browser"
	"browser-pilot/internal/config"
	"browser-pilot/internal/instructions"
	"browser-pilot/internal/llm"
	"browser-pilot/internal/metrics"
	"browser-pilot/internal/retrieval"
	"browser-pilot/internal/sandbox"
	"browser-pilot/internal/server"
	"browser-pilot/internal/telemetry"
	"browser-pilot/internal/transcript"
)

const metricsNamespace = "pilot"

// App holds what every command shares.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	fs  afero.Fs
	out io.Writer
}

// Init is the single process initialisation step: .env, config file, logger.
func Init(configPath string, debug bool) (*App, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	logger, err := newLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger.Debug("configuration loaded",
		zap.String("path", cfg.Path),
		zap.String("model", cfg.LLM.Model),
		zap.String("base_url", cfg.LLM.BaseURL),
		zap.String("embedding", cfg.Embedding.Provider),
	)
	return &App{Config: cfg, Logger: logger, fs: afero.NewOsFs(), out: os.Stdout}, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

// RunBuild executes the instruction file top to bottom and writes the transcript.
func (a *App) RunBuild(ctx context.Context, filePath string) (agent.Result, error) {
	src, err := instructions.Load(filePath)
	if err != nil {
		return agent.Result{}, err
	}

	b, err := a.newBrowser(ctx)
	if err != nil {
		return agent.Result{}, err
	}

	m := metrics.NewCollector(metricsNamespace, a.Logger)
	reporter := a.newReporter(m)
	defer reporter.Close()

	runner := agent.NewBatchRunner(
		b,
		a.newEngine(),
		sandbox.New(a.Logger),
		reporter,
		transcript.NewWriter(a.fs, a.Config.Output.Dir),
		m,
		a.Logger,
		agent.BatchOptions{
			OutputName:  transcript.OutputFileName(filePath, a.Config.Path),
			OwnsSession: true,
			Out:         a.out,
		},
	)
	return runner.Run(ctx, src.BaseURL, src.Instructions)
}

// RunLaunch serves the interactive display surface until ctx is cancelled.
func (a *App) RunLaunch(ctx context.Context, filePath, host string, port int) error {
	src, err := instructions.Load(filePath)
	if err != nil {
		return err
	}

	b, err := a.newBrowser(ctx)
	if err != nil {
		return err
	}

	m := metrics.NewCollector(metricsNamespace, a.Logger)
	reporter := a.newReporter(m)
	defer reporter.Close()

	runner := agent.NewInteractiveRunner(
		b,
		a.newEngine(),
		sandbox.New(a.Logger),
		reporter,
		m,
		a.Logger,
		agent.InteractiveOptions{ScreenshotPath: a.Config.Browser.Screenshot},
	)
	defer func() {
		if err := runner.Close(); err != nil {
			a.Logger.Warn("close browser", zap.Error(err))
		}
	}()

	srv := server.New(runner, server.Options{
		BaseURL:  src.BaseURL,
		Examples: src.Instructions,
		Metrics:  m.Handler(),
	}, a.Logger)

	addr := listenAddr(host, port)
	fmt.Fprintf(a.out, "🌊 Running on http://%s\n", addr)
	return srv.ListenAndServe(ctx, addr)
}

func (a *App) newBrowser(ctx context.Context) (*browser.BrowserService, error) {
	bc := a.Config.Browser
	b, err := browser.NewBrowserService(ctx, browser.Options{
		Headless:    bc.Headless,
		UserDataDir: bc.UserDataDir,
		Width:       bc.Width,
		Height:      bc.Height,
		Timeout:     bc.Timeout,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("browser launch error: %w", err)
	}
	return b, nil
}

func (a *App) newEngine() *llm.Engine {
	cfg := a.Config
	client := llm.New(cfg.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Temperature, cfg.LLM.MaxTokens)

	var embed chromem.EmbeddingFunc
	switch cfg.Embedding.Provider {
	case "hash":
		embed = retrieval.HashEmbedding(cfg.Embedding.Dimensions)
	default:
		embed = client.EmbeddingFunc(cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}

	return llm.NewEngine(client, embed, llm.Options{
		ChunkSize:         cfg.Retrieval.ChunkSize,
		TopK:              cfg.Retrieval.TopK,
		MaxCharsPerSource: cfg.Retrieval.MaxCharsPerSource,
	}, a.Logger)
}

func (a *App) newReporter(m *metrics.Collector) *telemetry.Reporter {
	return telemetry.NewReporter(
		a.telemetrySink(),
		a.Config.Telemetry.QueueSize,
		a.Logger,
		telemetry.WithDropHook(m.RecordTelemetryDropped),
	)
}

func (a *App) telemetrySink() telemetry.Sink {
	tc := a.Config.Telemetry
	if !tc.Enabled {
		return telemetry.Nop{}
	}
	var sinks telemetry.Multi
	if tc.Endpoint != "" {
		sinks = append(sinks, telemetry.NewHTTPSink(tc.Endpoint))
	}
	if tc.File != "" {
		sinks = append(sinks, telemetry.NewFileSink(a.fs, tc.File))
	}
	if len(sinks) == 0 {
		return telemetry.Nop{}
	}
	return sinks
}

// listenAddr defaults the host to localhost.
func listenAddr(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
