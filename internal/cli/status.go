package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/sync/ledger"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger and master dataset state",
	Long: `Show the processed-files ledger and the master dataset as they stand:
which remote files were ingested, at what remote timestamp, and how many
consolidated rows exist.`,
	RunE: runStatus,
}

var statusShowFiles bool

func init() {
	statusCmd.Flags().BoolVar(&statusShowFiles, "files", false, "List every ledger entry")
	rootCmd.AddCommand(statusCmd)
}

type statusData struct {
	LedgerPath    string        `json:"ledgerPath"`
	LedgerEntries int           `json:"ledgerEntries"`
	MasterPath    string        `json:"masterPath"`
	MasterExists  bool          `json:"masterExists"`
	MasterRows    int           `json:"masterRows"`
	MasterColumns []string      `json:"masterColumns,omitempty"`
	Files         []ledgerEntry `json:"files,omitempty"`
}

type ledgerEntry struct {
	Path        string `json:"path"`
	ProcessedAt string `json:"processedAt"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	cfg, err := loadConfig()
	if err != nil {
		return writeConfigError(out, "status", err)
	}

	led, err := ledger.Load(cfg.LedgerPath, GetLogger())
	if err != nil {
		return writeCLIError(out, "status", err)
	}

	data := &statusData{
		LedgerPath:    cfg.LedgerPath,
		LedgerEntries: led.Len(),
		MasterPath:    cfg.MasterPath,
	}

	if _, err := os.Stat(cfg.MasterPath); err == nil {
		data.MasterExists = true
		table, err := tabular.ReadTable(cfg.MasterPath)
		if err != nil {
			out.AddWarning("MASTER_UNREADABLE", err.Error(), "warning")
		} else {
			data.MasterRows = len(table.Rows)
			data.MasterColumns = table.Columns
		}
	}

	if statusShowFiles {
		entries := led.Entries()
		for _, path := range led.Paths() {
			data.Files = append(data.Files, ledgerEntry{Path: path, ProcessedAt: entries[path]})
		}
	}

	return out.WriteSuccess("status", data)
}

func (d *statusData) AsTableRenderer() types.TableRenderer {
	if len(d.Files) > 0 {
		return &ledgerFileTable{d.Files}
	}
	return &statusTable{d}
}

type statusTable struct {
	data *statusData
}

func (t *statusTable) Headers() []string {
	return []string{"Key", "Value"}
}

func (t *statusTable) Rows() [][]string {
	masterState := "absent"
	if t.data.MasterExists {
		masterState = "present"
	}
	return [][]string{
		{"Ledger", t.data.LedgerPath},
		{"Processed files", strconv.Itoa(t.data.LedgerEntries)},
		{"Master", t.data.MasterPath},
		{"Master state", masterState},
		{"Master rows", strconv.Itoa(t.data.MasterRows)},
	}
}

func (t *statusTable) EmptyMessage() string {
	return "No sync state found"
}

type ledgerFileTable struct {
	files []ledgerEntry
}

func (t *ledgerFileTable) Headers() []string {
	return []string{"Path", "Processed At"}
}

func (t *ledgerFileTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.files))
	for _, f := range t.files {
		rows = append(rows, []string{f.Path, config.FormatTime(f.ProcessedAt)})
	}
	return rows
}

func (t *ledgerFileTable) EmptyMessage() string {
	return "Ledger is empty; no files processed yet"
}
