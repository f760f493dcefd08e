package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/sync/history"
	"github.com/dittorahmat/labsync/internal/types"
	"github.com/dittorahmat/labsync/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent sync runs",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list")
	rootCmd.AddCommand(historyCmd)
}

type historyData struct {
	Runs []history.Record `json:"runs"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	cfg, err := loadConfig()
	if err != nil {
		return writeConfigError(out, "history", err)
	}

	path, err := cfg.ResolveHistoryPath()
	if err != nil {
		return writeCLIError(out, "history", err)
	}
	db, err := history.Open(path)
	if err != nil {
		return writeCLIError(out, "history",
			utils.NewAppError(utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build()))
	}
	defer db.Close()

	runs, err := db.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return writeCLIError(out, "history",
			utils.NewAppError(utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).Build()))
	}

	return out.WriteSuccess("history", &historyData{Runs: runs})
}

func (d *historyData) AsTableRenderer() types.TableRenderer {
	return d
}

func (d *historyData) Headers() []string {
	return []string{"Run ID", "Started", "Status", "Discovered", "Processed", "Failed", "Appended"}
}

func (d *historyData) Rows() [][]string {
	rows := make([][]string, 0, len(d.Runs))
	for _, run := range d.Runs {
		rows = append(rows, []string{
			config.TruncateString(run.RunID, 13),
			config.FormatTime(run.StartedAt.Format(time.RFC3339)),
			run.Status,
			strconv.Itoa(run.Discovered),
			strconv.Itoa(run.New + run.Modified),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.RowsAppended),
		})
	}
	return rows
}

func (d *historyData) EmptyMessage() string {
	return "No runs recorded yet"
}
