package cli

import (
	"testing"

	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/types"
)

func TestJobFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DocLibrary = "Shared Documents"
	cfg.FolderPath = "Lab Results/2024"
	cfg.MasterPath = "/data/master.xlsx"
	cfg.LedgerPath = "/data/ledger.json"
	cfg.Concurrency = 3

	job := jobFromConfig(cfg, types.GlobalFlags{DryRun: true})

	if job.Root != "Shared Documents/Lab Results/2024" {
		t.Errorf("Root = %q", job.Root)
	}
	if !job.DryRun {
		t.Error("DryRun flag not carried into the job")
	}
	if job.Concurrency != 3 {
		t.Errorf("Concurrency = %d, want 3", job.Concurrency)
	}
	if len(job.TargetSheets) == 0 || len(job.QCPatterns) == 0 {
		t.Errorf("Config lists not carried: %+v", job)
	}
	if err := job.Validate(); err != nil {
		t.Errorf("Job from a valid config must validate: %v", err)
	}
}

func TestScanRoot(t *testing.T) {
	tests := []struct {
		name    string
		backend config.StoreBackend
		library string
		folder  string
		want    string
	}{
		{"sharepoint library only", config.BackendSharePoint, "Documents", "", "Documents"},
		{"sharepoint with folder", config.BackendSharePoint, "Documents/", "/Lab/2024/", "Documents/Lab/2024"},
		{"drive folder", config.BackendDrive, "ignored", "/Lab/2024/", "Lab/2024"},
		{"drive root", config.BackendDrive, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Backend = tt.backend
			cfg.DocLibrary = tt.library
			cfg.FolderPath = tt.folder
			if got := scanRoot(cfg); got != tt.want {
				t.Errorf("scanRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyConfigValue(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := applyConfigValue(cfg, "targetSheets", "Batch Sheet, QC Log"); err != nil {
		t.Fatalf("applyConfigValue() error = %v", err)
	}
	if len(cfg.TargetSheets) != 2 || cfg.TargetSheets[1] != "QC Log" {
		t.Errorf("TargetSheets = %v", cfg.TargetSheets)
	}

	if err := applyConfigValue(cfg, "concurrency", "4"); err != nil {
		t.Fatalf("applyConfigValue() error = %v", err)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}

	if err := applyConfigValue(cfg, "concurrency", "four"); err == nil {
		t.Error("Expected error for non-integer concurrency")
	}
	if err := applyConfigValue(cfg, "noSuchKey", "x"); err == nil {
		t.Error("Expected error for unknown key")
	}
}
