// cmd/winmaint/main.go

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/winmaint/pkg/blocking"
	"github.com/windowsadmins/winmaint/pkg/config"
	"github.com/windowsadmins/winmaint/pkg/execx"
	"github.com/windowsadmins/winmaint/pkg/filter"
	"github.com/windowsadmins/winmaint/pkg/history"
	"github.com/windowsadmins/winmaint/pkg/logging"
	"github.com/windowsadmins/winmaint/pkg/logproc"
	"github.com/windowsadmins/winmaint/pkg/orchestrator"
	"github.com/windowsadmins/winmaint/pkg/pkgmgr"
	"github.com/windowsadmins/winmaint/pkg/progress"
	"github.com/windowsadmins/winmaint/pkg/pwsh"
	"github.com/windowsadmins/winmaint/pkg/regedit"
	"github.com/windowsadmins/winmaint/pkg/result"
	"github.com/windowsadmins/winmaint/pkg/retry"
	"github.com/windowsadmins/winmaint/pkg/schtasks"
	"github.com/windowsadmins/winmaint/pkg/scripts"
	"github.com/windowsadmins/winmaint/pkg/services"
	"github.com/windowsadmins/winmaint/pkg/tasks"
	"github.com/windowsadmins/winmaint/pkg/utils"
	"github.com/windowsadmins/winmaint/pkg/version"
)

// Process exit codes.
const (
	exitOK           = 0
	exitSetup        = 1
	exitModuleFailed = 2
	exitLocked       = 3
)

// historyKeep is how many runs the history database retains.
const historyKeep = 1000

var logger *logging.Console

func main() {
	os.Exit(run())
}

func exitCodeFor(failed bool) int {
	if failed {
		return exitModuleFailed
	}
	return exitOK
}

func run() int {
	utils.PatchWindowsArgs()

	// Define command-line flags.
	nonInteractive := pflag.Bool("non-interactive", false, "Run without prompts (implied when stdin is not a terminal).")
	dryRun := pflag.Bool("dry-run", false, "Compute and log every change without applying it.")
	configDir := pflag.String("config-dir", "", "Directory holding Config.yaml, the list files and hook scripts.")
	listTasks := pflag.Bool("list-tasks", false, "List the available tasks and exit.")
	showConfig := pflag.Bool("show-config", false, "Display the effective configuration and exit.")
	historyN := pflag.Int("history", 0, "Print the last N recorded runs and exit.")
	showItems := pflag.Int("items", 0, "Print the item history of the last N sessions and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit. With -v, include build details.")
	taskFilter := filter.NewTaskFilter()
	taskFilter.RegisterFlags(pflag.CommandLine)

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv)")
	pflag.Parse()

	logger = logging.New(verbosity > 0)

	if *versionFlag {
		version.Version().Fprint(os.Stdout, verbosity > 0)
		return exitOK
	}
	if *listTasks {
		printTasks(os.Stdout, tasks.All())
		return exitOK
	}

	dir, dirRule := config.DiscoverConfigDir(*configDir)
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return exitSetup
	}
	applyFlags(cfg, *dryRun, *nonInteractive, verbosity)

	if *showConfig {
		if cfgYaml, err := yaml.Marshal(cfg); err == nil {
			logger.Printf("Current configuration (%s, from %s):\n%s", cfg.Source, dirRule, string(cfgYaml))
		}
		return exitOK
	}

	if err := cfg.EnsureDirs(); err != nil {
		logger.Error("Failed to create state directories: %v", err)
		return exitSetup
	}

	if *historyN > 0 {
		return printHistory(cfg, *historyN)
	}
	if *showItems > 0 {
		items, err := logproc.ItemsTable(cfg.LogsPath, *showItems)
		if err != nil {
			logger.Error("Failed to read session logs: %v", err)
			return exitSetup
		}
		logproc.PrintItems(os.Stdout, items)
		return exitOK
	}

	interactive := !cfg.NonInteractive && term.IsTerminal(int(os.Stdin.Fd()))
	runType := "noninteractive"
	switch {
	case cfg.DryRun:
		runType = "dryrun"
	case interactive:
		runType = "interactive"
	}

	if !cfg.DryRun {
		admin, adminErr := adminCheck()
		if adminErr != nil || !admin {
			logger.Error("Administrative access required. Error: %v, Admin: %v", adminErr, admin)
			return exitSetup
		}
	}

	// The lock is taken before the session log directory is created so an
	// instance that exits here leaves nothing behind.
	lock, err := orchestrator.AcquireLock(orchestrator.LockPath(cfg))
	if err != nil {
		if errors.Is(err, orchestrator.ErrLocked) {
			logger.Warning("%v", err)
			return exitLocked
		}
		logger.Error("Failed to acquire run lock: %v", err)
		return exitSetup
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warning("Failed to release run lock: %v", err)
		}
	}()

	if err := logging.Init(cfg, runType); err != nil {
		logger.Error("Error initializing logger: %v", err)
		return exitSetup
	}
	defer logging.CloseLogger()
	logging.Info("winmaint starting", "version", version.Version().Version, "config", cfg.Source, "config_dir_rule", dirRule)

	lists, err := config.LoadLists(cfg.ListsPath)
	if err != nil {
		logger.Error("Failed to load lists: %v", err)
		return exitSetup
	}

	runner := execx.NewExecRunner(time.Duration(cfg.CommandTimeoutMinutes) * time.Minute)
	shell := pwsh.New(runner)
	managers, err := pkgmgr.New(cfg.PackageManagers, runner, shell)
	if err != nil {
		logger.Error("Invalid package manager configuration: %v", err)
		return exitSetup
	}

	var reporter progress.Reporter = progress.NewNoOpReporter()
	if interactive {
		reporter = progress.NewConsoleReporter(os.Stdout, verbosity)
	}
	defer reporter.Stop()

	base := tasks.RunContext{
		DryRun:    cfg.DryRun,
		Registry:  regedit.NewStore(),
		Services:  services.NewController(runner),
		Scheduler: schtasks.New(runner),
		Managers:  managers,
		Updates:   shell,
		Firewall:  shell,
		Blocking:  blocking.NewChecker(),
		Retry:     retry.FromSettings(cfg.Retry),
		Progress:  reporter,
	}
	orch := orchestrator.New(cfg, lists, base, scripts.NewHookRunner(cfg.ConfigDir, shell))
	orch.RunType = runType
	orch.ConfigHash = configHash(cfg)

	selection, err := taskFilter.Select(orch.Numbers())
	if err != nil {
		logger.Error("Invalid --tasks value: %v", err)
		return exitSetup
	}
	if interactive {
		p := newPrompter(os.Stdin, os.Stdout)
		if !taskFilter.HasFilter() {
			var ok bool
			selection, ok, err = p.selectTasks(orch.Tasks, orch.Numbers())
			if err != nil || !ok {
				logger.Info("No tasks selected, exiting.")
				return exitOK
			}
		}
		orch.Confirm = p.confirm
	}

	if err := logging.StartSession(map[string]interface{}{
		"version":  version.Version().Version,
		"tasks":    selection,
		"dry_run":  cfg.DryRun,
		"config":   cfg.Source,
		"run_type": runType,
	}); err != nil {
		logging.Warn("Failed to start session record", "error", err)
	}

	// Handle system signals for graceful shutdown: a signal stops the run
	// before the next task and the remaining tasks are reported as skipped.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := orch.Run(ctx, selection)
	if report == nil {
		logger.Error("Run failed: %v", runErr)
		return exitSetup
	}
	if ctx.Err() != nil {
		logger.Warning("Signal received, remaining tasks were skipped")
	}

	finishRun(cfg, report)

	if runErr != nil {
		logger.Error("Run aborted: %v", runErr)
		return exitSetup
	}
	if report.Failed() {
		logger.Warning("One or more modules failed")
	} else {
		logger.Success("Maintenance run completed")
	}
	return exitCodeFor(report.Failed())
}

// applyFlags lets command-line flags override the loaded configuration.
func applyFlags(cfg *config.Configuration, dryRun, nonInteractive bool, verbosity int) {
	if dryRun {
		cfg.DryRun = true
	}
	if nonInteractive {
		cfg.NonInteractive = true
	}
	// 1 => INFO on the console, 2+ => DEBUG
	switch {
	case verbosity >= 2:
		cfg.LogLevel = "DEBUG"
		cfg.Verbose = true
		cfg.Debug = true
	case verbosity == 1:
		cfg.LogLevel = "INFO"
		cfg.Verbose = true
	}
}

// configHash fingerprints the configuration file and list files used for the run.
func configHash(cfg *config.Configuration) string {
	paths := []string{cfg.Source}
	for _, name := range []string{
		config.BloatwareListFile, config.EssentialListFile, config.TelemetryListFile,
		config.SecurityListFile, config.UpdatesListFile,
	} {
		paths = append(paths, filepath.Join(cfg.ListsPath, name))
	}
	return utils.CombinedSHA256(paths...)
}

// finishRun writes the summary files, prints the summary and records the run.
func finishRun(cfg *config.Configuration, report *result.RunReport) {
	sessionDir := logging.GetCurrentLogDir()
	summary, err := logproc.SummarizeSession(report, sessionDir)
	if err != nil {
		logging.Warn("Failed to summarize session", "error", err)
	} else {
		reportDir := filepath.Join(cfg.ReportsPath, filepath.Base(sessionDir))
		if path, err := logproc.Write(summary, reportDir); err != nil {
			logging.Warn("Failed to write summary", "error", err)
		} else {
			logging.Info("Summary written", "path", path)
		}
		logproc.PrintSummary(os.Stdout, summary)
	}

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logging.Warn("Failed to open history database", "path", cfg.HistoryPath, "error", err)
		return
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Record(ctx, report); err != nil {
		logging.Warn("Failed to record run history", "error", err)
		return
	}
	if removed, err := store.Prune(ctx, historyKeep); err != nil {
		logging.Warn("Failed to prune run history", "error", err)
	} else if removed > 0 {
		logging.Debug("Pruned run history", "removed", removed)
	}
}

func printHistory(cfg *config.Configuration, n int) int {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Error("Failed to open history database: %v", err)
		return exitSetup
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), n)
	if err != nil {
		logger.Error("Failed to read history: %v", err)
		return exitSetup
	}
	logproc.PrintHistory(os.Stdout, runs)
	return exitOK
}
