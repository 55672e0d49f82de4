package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/packhound/packhound"
	"github.com/packhound/packhound/internal/presentation/tui"
	"github.com/packhound/packhound/pkg/adapters/chat"
	"github.com/packhound/packhound/pkg/agents"
	"github.com/packhound/packhound/pkg/domain"
	"github.com/packhound/packhound/pkg/ports"
)

// Report filenames written next to the analyzed package.
const (
	reportTextFile = "report.txt"
	reportJSONFile = "report.json"
)

// RunOptions configures one CLI analysis.
type RunOptions struct {
	PkgDir     string
	ConfigPath string
	Debug      bool
	LowMemory  bool
	NoBanner   bool
}

// RunAnalysis collects the package's entry points, runs the investigation
// and writes the report pair into the package directory.
func RunAnalysis(opts RunOptions) error {
	logger := createLogger(opts.Debug)

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.LowMemory {
		cfg.LowMemory = true
	}

	if !opts.NoBanner {
		tui.PrintBanner()
	}

	units, err := CollectSources(opts.PkgDir)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return fmt.Errorf("no analyzable entry points under %s", opts.PkgDir)
	}
	packageName := filepath.Base(filepath.Clean(opts.PkgDir))
	logger.Info("collected entry points", "package", packageName, "files", len(units))

	engine, err := BuildEngine(cfg, logger, domain.LifecycleHooks{})
	if err != nil {
		return err
	}

	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	state, runErr := engine.Analyze(ctx, packageName, units)
	if runErr != nil {
		if sig := ctx.Signal(); sig != nil {
			return fmt.Errorf("analysis interrupted by %v", sig)
		}
		return fmt.Errorf("analysis of %s failed: %w", packageName, runErr)
	}

	printReport(state.FinalReportText)
	return writeReports(opts.PkgDir, state)
}

// BuildEngine assembles the analysis engine from the configured endpoints.
// Extra hooks (metrics, tracing) are merged with the debug trace hooks.
func BuildEngine(cfg Config, logger *slog.Logger, extraHooks domain.LifecycleHooks) (*packhound.Engine, error) {
	supervisorCfg, workerCfg, formatterCfg := cfg.Endpoints()

	supervisor := chat.New(supervisorCfg)
	workerModel := chat.New(workerCfg)
	formatter := chat.New(formatterCfg)

	workers := []ports.Worker{
		agents.NewResearcher(workerModel, agents.ResearcherConfig{}, agents.WithLogger(logger)),
		agents.NewDeobfuscator(workerModel, agents.WithLogger(logger)),
	}

	engineOpts := []packhound.Option{
		packhound.WithLogger(logger),
		packhound.WithLifecycleHooks(mergeHooks(debugHooks(logger), extraHooks)),
	}
	if cfg.StepBudget > 0 {
		engineOpts = append(engineOpts, packhound.WithStepBudget(cfg.StepBudget))
	}
	if cfg.TaskBudget > 0 {
		engineOpts = append(engineOpts, packhound.WithTaskBudget(cfg.TaskBudget))
	}
	if cfg.StepCeiling > 0 {
		engineOpts = append(engineOpts, packhound.WithStepCeiling(cfg.StepCeiling))
	}
	if cfg.FormatRetries > 0 {
		engineOpts = append(engineOpts, packhound.WithFormatRetries(cfg.FormatRetries))
	}

	return packhound.New(supervisor, formatter, workers, engineOpts...)
}

func printReport(text string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		render := tui.NewRenderer()
		if rendered, err := render(text); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(text)
}

func writeReports(pkgDir string, state *domain.AnalysisState) error {
	textPath := filepath.Join(pkgDir, reportTextFile)
	if err := os.WriteFile(textPath, []byte(state.FinalReportText), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", textPath, err)
	}

	data, err := json.MarshalIndent(state.FinalReport, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode structured report: %w", err)
	}
	jsonPath := filepath.Join(pkgDir, reportJSONFile)
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", jsonPath, err)
	}
	return nil
}
