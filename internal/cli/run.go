package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dittorahmat/labsync/internal/auth"
	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/store/drive"
	"github.com/dittorahmat/labsync/internal/store/sharepoint"
	syncengine "github.com/dittorahmat/labsync/internal/sync"
	"github.com/dittorahmat/labsync/internal/sync/history"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
	"github.com/dittorahmat/labsync/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one incremental sync",
	Long: `Run one incremental synchronization: walk the remote folder tree,
process files that are new or modified since the last run, and append
their cleaned rows to the master workbook.`,
	RunE: runSync,
}

var runConcurrency int

func init() {
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Files processed in parallel (overrides config)")
	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	ctx := context.Background()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	cfg, err := loadConfig()
	if err != nil {
		return writeConfigError(out, "run", err)
	}

	st, err := buildStore(ctx, cfg, flags, GetLogger())
	if err != nil {
		return writeCLIError(out, "run", err)
	}

	if verifier, ok := st.(store.Verifier); ok {
		if err := verifier.Verify(ctx); err != nil {
			return writeCLIError(out, "run", err)
		}
	}

	engine := syncengine.NewEngine(st, tabular.NewXLSXReader(), GetLogger())
	if db := openHistory(cfg); db != nil {
		defer db.Close()
		engine.SetHistory(db)
	}

	job := jobFromConfig(cfg, flags)
	if runConcurrency > 0 {
		job.Concurrency = runConcurrency
	}

	summary, err := engine.Run(ctx, job)
	if err != nil {
		return writeCLIError(out, "run", err)
	}

	return out.WriteSuccess("run", &runSummaryView{summary})
}

// loadConfig loads configuration, honoring the --config flag.
func loadConfig() (*config.Config, error) {
	flags := GetGlobalFlags()
	if flags.Config != "" {
		if err := config.SetConfigPathOverride(flags.Config); err != nil {
			return nil, err
		}
	}
	return config.Load()
}

// jobFromConfig maps the validated configuration to an immutable job.
func jobFromConfig(cfg *config.Config, flags types.GlobalFlags) syncengine.Job {
	return syncengine.Job{
		Root:             scanRoot(cfg),
		TargetSheets:     cfg.TargetSheets,
		MatchStrategy:    string(cfg.SheetMatch),
		QCPatterns:       cfg.QCPatterns,
		KeyFields:        cfg.KeyFields,
		Extensions:       cfg.Extensions,
		SkipFolderPrefix: cfg.SkipFolderPrefix,
		SkipFolderNames:  cfg.SkipFolderNames,
		MasterPath:       cfg.MasterPath,
		LedgerPath:       cfg.LedgerPath,
		Concurrency:      cfg.Concurrency,
		DryRun:           flags.DryRun,
	}
}

// scanRoot composes the store path the walk starts from. SharePoint paths
// are server-relative under the document library; Drive paths are relative
// to the configured root folder.
func scanRoot(cfg *config.Config) string {
	if cfg.Backend == config.BackendSharePoint {
		root := strings.TrimSuffix(cfg.DocLibrary, "/")
		if cfg.FolderPath != "" {
			root = root + "/" + strings.Trim(cfg.FolderPath, "/")
		}
		return root
	}
	return strings.Trim(cfg.FolderPath, "/")
}

// buildStore constructs the configured remote store backend.
func buildStore(ctx context.Context, cfg *config.Config, flags types.GlobalFlags, logger logging.Logger) (store.Store, error) {
	retry := store.RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.GetRetryBaseDelay(),
	}

	var transport *logging.DebugTransport
	if flags.Debug {
		transport = logging.NewDebugTransport(logger, nil)
	}

	switch cfg.Backend {
	case config.BackendSharePoint:
		if cfg.SiteURL == "" || cfg.TenantID == "" || cfg.ClientID == "" {
			return nil, invalidConfig("sharepoint backend requires siteUrl, tenantId and clientId")
		}
		secrets, err := loadSecrets(flags.Profile)
		if err != nil {
			return nil, err
		}
		if secrets.ClientSecret == "" {
			return nil, authRequired("no client secret stored for profile '" + flags.Profile + "'; run 'labsync auth set'")
		}
		opts := sharepoint.Options{
			SiteURL:      cfg.SiteURL,
			TenantID:     cfg.TenantID,
			ClientID:     cfg.ClientID,
			ClientSecret: secrets.ClientSecret,
			Timeout:      cfg.GetRequestTimeout(),
			Retry:        retry,
			Logger:       logger,
		}
		if transport != nil {
			opts.Transport = transport
		}
		return sharepoint.New(ctx, opts)

	case config.BackendDrive:
		if cfg.DriveCredentialsFile == "" {
			return nil, invalidConfig("drive backend requires driveCredentialsFile")
		}
		svc, err := drive.NewService(ctx, cfg.DriveCredentialsFile, nil)
		if err != nil {
			return nil, err
		}
		return drive.New(drive.Options{
			Service:      svc,
			RootFolderID: cfg.DriveRootFolderID,
			Retry:        retry,
			Logger:       logger,
		})

	default:
		return nil, invalidConfig(fmt.Sprintf("unknown backend: %s", cfg.Backend))
	}
}

func loadSecrets(profile string) (*auth.Secrets, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	mgr := auth.NewManager(configDir)
	secrets, err := mgr.LoadSecrets(profile)
	if err != nil {
		return nil, authRequired(fmt.Sprintf("failed to load secrets for profile '%s': %v", profile, err))
	}
	return secrets, nil
}

func openHistory(cfg *config.Config) *history.DB {
	path, err := cfg.ResolveHistoryPath()
	if err != nil {
		GetLogger().Warn("Could not resolve history path", logging.F("error", err.Error()))
		return nil
	}
	db, err := history.Open(path)
	if err != nil {
		GetLogger().Warn("Could not open run history, continuing without it",
			logging.F("path", path),
			logging.F("error", err.Error()))
		return nil
	}
	return db
}

func invalidConfig(message string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidConfig, message).Build())
}

func authRequired(message string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired, message).Build())
}

func writeConfigError(out *config.OutputFormatter, command string, err error) error {
	return writeCLIError(out, command, invalidConfig(err.Error()))
}

// writeCLIError emits the structured error envelope and returns an
// AppError so Execute maps it to the right exit code.
func writeCLIError(out *config.OutputFormatter, command string, err error) error {
	appErr, ok := err.(*utils.AppError)
	if !ok {
		if se, found := store.AsStoreError(err); found {
			appErr = utils.NewAppError(utils.NewCLIError(se.Code, se.Message).
				WithHTTPStatus(se.HTTPStatus).
				WithRetryable(se.Retryable).
				Build())
		} else {
			appErr = utils.NewAppError(utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build())
		}
	}
	_ = out.WriteError(command, appErr.CLIError)
	return appErr
}

// runSummaryView renders a run summary as a table.
type runSummaryView struct {
	*syncengine.RunSummary
}

func (v *runSummaryView) AsTableRenderer() types.TableRenderer {
	return v
}

func (v *runSummaryView) Headers() []string {
	return []string{"Metric", "Value"}
}

func (v *runSummaryView) Rows() [][]string {
	mode := "sync"
	if v.DryRun {
		mode = "dry-run"
	}
	return [][]string{
		{"Run ID", v.RunID},
		{"Mode", mode},
		{"Duration", v.Duration.Round(time.Millisecond).String()},
		{"Discovered", fmt.Sprintf("%d", v.Discovered)},
		{"New", fmt.Sprintf("%d", v.New)},
		{"Modified", fmt.Sprintf("%d", v.Modified)},
		{"Unchanged", fmt.Sprintf("%d", v.Unchanged)},
		{"Skipped", fmt.Sprintf("%d", v.Skipped)},
		{"Failed", fmt.Sprintf("%d", v.Failed)},
		{"Rows extracted", fmt.Sprintf("%d", v.RowsExtracted)},
		{"Rows kept", fmt.Sprintf("%d", v.RowsCleaned)},
		{"Rows appended", fmt.Sprintf("%d", v.RowsAppended)},
		{"Master", v.MasterPath},
		{"Ledger entries", fmt.Sprintf("%d", v.LedgerEntries)},
	}
}

func (v *runSummaryView) EmptyMessage() string {
	return "No summary available"
}
