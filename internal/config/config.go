package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dittorahmat/labsync/internal/types"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.json"
	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "LABSYNC_"
)

// StoreBackend selects which remote document store a job runs against.
type StoreBackend string

const (
	// BackendSharePoint walks a SharePoint document library over REST
	BackendSharePoint StoreBackend = "sharepoint"
	// BackendDrive walks a Google Drive folder tree
	BackendDrive StoreBackend = "drive"
)

// MatchStrategy names a sheet-name matching policy.
type MatchStrategy string

const (
	// MatchSubstring matches case-insensitively on substring (first hit wins)
	MatchSubstring MatchStrategy = "substring"
	// MatchExact matches case-insensitively on the whole name
	MatchExact MatchStrategy = "exact"
)

// Config holds application configuration
type Config struct {
	// DefaultProfile is the default authentication profile to use
	DefaultProfile string `json:"defaultProfile"`

	// DefaultOutputFormat is the default output format (json, table)
	DefaultOutputFormat types.OutputFormat `json:"defaultOutputFormat"`

	// Backend selects the remote store (sharepoint, drive)
	Backend StoreBackend `json:"backend"`

	// SiteURL is the SharePoint site URL, e.g. https://contoso.sharepoint.com/sites/lab
	SiteURL string `json:"siteUrl"`

	// TenantID is the Azure AD tenant for client-credential auth
	TenantID string `json:"tenantId"`

	// ClientID is the Azure AD application (client) ID
	ClientID string `json:"clientId"`

	// DocLibrary is the document library name
	DocLibrary string `json:"docLibrary"`

	// FolderPath is the folder path under the library to scan
	FolderPath string `json:"folderPath"`

	// DriveRootFolderID is the Drive folder ID acting as the scan root
	DriveRootFolderID string `json:"driveRootFolderId"`

	// DriveCredentialsFile is the path to a service-account JSON key
	DriveCredentialsFile string `json:"driveCredentialsFile"`

	// TargetSheets are the sheet names to extract, in priority order
	TargetSheets []string `json:"targetSheets"`

	// SheetMatch selects the sheet-name matching policy (substring, exact)
	SheetMatch MatchStrategy `json:"sheetMatch"`

	// QCPatterns mark quality-control rows for exclusion
	QCPatterns []string `json:"qcPatterns"`

	// KeyFields are columns that must be non-empty for a row to survive
	KeyFields []string `json:"keyFields"`

	// Extensions are the spreadsheet file extensions to pick up
	Extensions []string `json:"extensions"`

	// SkipFolderPrefix marks folders to skip (reserved folders)
	SkipFolderPrefix string `json:"skipFolderPrefix"`

	// SkipFolderNames are folder names skipped outright
	SkipFolderNames []string `json:"skipFolderNames"`

	// MasterPath is the consolidated output workbook path
	MasterPath string `json:"masterPath"`

	// LedgerPath is the processed-files ledger path
	LedgerPath string `json:"ledgerPath"`

	// HistoryPath is the run-history database path ("" = under config dir)
	HistoryPath string `json:"historyPath"`

	// Concurrency is the number of files processed in parallel
	Concurrency int `json:"concurrency"`

	// MaxRetries is the maximum number of retries for remote calls
	MaxRetries int `json:"maxRetries"`

	// RetryBaseDelay is the base delay for exponential backoff in milliseconds
	RetryBaseDelay int `json:"retryBaseDelay"`

	// RequestTimeout is the default request timeout in seconds
	RequestTimeout int `json:"requestTimeout"`

	// LogLevel sets the logging verbosity (quiet, normal, verbose, debug)
	LogLevel string `json:"logLevel"`

	// LogFile receives JSON log lines when set
	LogFile string `json:"logFile"`

	// ColorOutput enables color output for table format
	ColorOutput bool `json:"colorOutput"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultProfile:      "default",
		DefaultOutputFormat: types.OutputFormatJSON,
		Backend:             BackendSharePoint,
		DocLibrary:          "Documents",
		TargetSheets:        []string{"Batch Sheet", "Product Info"},
		SheetMatch:          MatchSubstring,
		QCPatterns:          []string{"CCV", "MB", "Blank", "Check"},
		KeyFields:           []string{"Sample ID", "Result"},
		Extensions:          []string{".xlsx", ".xls"},
		SkipFolderPrefix:    "_",
		SkipFolderNames:     []string{"Forms"},
		MasterPath:          "master_lab_results.xlsx",
		LedgerPath:          "processed_files.json",
		Concurrency:         1,
		MaxRetries:          3,
		RetryBaseDelay:      1000, // 1 second
		RequestTimeout:      60,   // 60 seconds
		LogLevel:            "normal",
		ColorOutput:         true,
	}
}

// Load loads configuration with precedence: CLI flags > env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file not existing is not an error
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from the config file
func (c *Config) loadFromFile() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if v := os.Getenv(EnvPrefix + "DEFAULT_PROFILE"); v != "" {
		c.DefaultProfile = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_FORMAT"); v != "" {
		c.DefaultOutputFormat = types.OutputFormat(v)
	}
	if v := os.Getenv(EnvPrefix + "BACKEND"); v != "" {
		c.Backend = StoreBackend(v)
	}
	if v := os.Getenv(EnvPrefix + "SITE_URL"); v != "" {
		c.SiteURL = v
	}
	if v := os.Getenv(EnvPrefix + "TENANT_ID"); v != "" {
		c.TenantID = v
	}
	if v := os.Getenv(EnvPrefix + "CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv(EnvPrefix + "DOC_LIBRARY"); v != "" {
		c.DocLibrary = v
	}
	if v := os.Getenv(EnvPrefix + "FOLDER_PATH"); v != "" {
		c.FolderPath = v
	}
	if v := os.Getenv(EnvPrefix + "DRIVE_ROOT_FOLDER_ID"); v != "" {
		c.DriveRootFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "DRIVE_CREDENTIALS_FILE"); v != "" {
		c.DriveCredentialsFile = v
	}
	if v := os.Getenv(EnvPrefix + "TARGET_SHEETS"); v != "" {
		c.TargetSheets = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "SHEET_MATCH"); v != "" {
		c.SheetMatch = MatchStrategy(v)
	}
	if v := os.Getenv(EnvPrefix + "QC_PATTERNS"); v != "" {
		c.QCPatterns = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "KEY_FIELDS"); v != "" {
		c.KeyFields = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "EXTENSIONS"); v != "" {
		c.Extensions = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "SKIP_FOLDER_PREFIX"); v != "" {
		c.SkipFolderPrefix = v
	}
	if v := os.Getenv(EnvPrefix + "SKIP_FOLDER_NAMES"); v != "" {
		c.SkipFolderNames = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "MASTER_FILE"); v != "" {
		c.MasterPath = v
	}
	if v := os.Getenv(EnvPrefix + "LEDGER_FILE"); v != "" {
		c.LedgerPath = v
	}
	if v := os.Getenv(EnvPrefix + "HISTORY_FILE"); v != "" {
		c.HistoryPath = v
	}
	if v := os.Getenv(EnvPrefix + "CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Concurrency = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MAX_RETRIES"); v != "" {
		if retries, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = retries
		}
	}
	if v := os.Getenv(EnvPrefix + "RETRY_BASE_DELAY"); v != "" {
		if delay, err := strconv.Atoi(v); err == nil {
			c.RetryBaseDelay = delay
		}
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		if timeout, err := strconv.Atoi(v); err == nil {
			c.RequestTimeout = timeout
		}
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv(EnvPrefix + "COLOR_OUTPUT"); v != "" {
		c.ColorOutput = parseBool(v)
	}
}

// Save saves the configuration to the config file
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions: the file may name tenant and client IDs
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DefaultOutputFormat != types.OutputFormatJSON &&
		c.DefaultOutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", c.DefaultOutputFormat)
	}

	if c.Backend != BackendSharePoint && c.Backend != BackendDrive {
		return fmt.Errorf("invalid backend: %s (must be 'sharepoint' or 'drive')", c.Backend)
	}

	if c.SheetMatch != MatchSubstring && c.SheetMatch != MatchExact {
		return fmt.Errorf("invalid sheet match strategy: %s (must be 'substring' or 'exact')", c.SheetMatch)
	}

	if len(c.TargetSheets) == 0 {
		return fmt.Errorf("target sheets must not be empty")
	}

	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid extension %q: must start with '.'", ext)
		}
	}

	if c.MasterPath == "" {
		return fmt.Errorf("master path must not be empty")
	}

	if c.LedgerPath == "" {
		return fmt.Errorf("ledger path must not be empty")
	}

	if c.Concurrency < 1 || c.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 1 and 64, got: %d", c.Concurrency)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("max retries must be between 0 and 10, got: %d", c.MaxRetries)
	}

	if c.RetryBaseDelay < 100 || c.RetryBaseDelay > 60000 {
		return fmt.Errorf("retry base delay must be between 100ms and 60000ms, got: %d", c.RetryBaseDelay)
	}

	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		return fmt.Errorf("request timeout must be between 1 and 3600 seconds, got: %d", c.RequestTimeout)
	}

	validLogLevels := []string{"quiet", "normal", "verbose", "debug"}
	isValid := false
	for _, level := range validLogLevels {
		if c.LogLevel == level {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// GetRetryBaseDelay returns the retry base delay as a duration
func (c *Config) GetRetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelay) * time.Millisecond
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ResolveHistoryPath returns the run-history database path, defaulting to
// history.db under the config directory.
func (c *Config) ResolveHistoryPath() (string, error) {
	if c.HistoryPath != "" {
		return c.HistoryPath, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "history.db"), nil
}

// configPathOverride points Load at an explicit config file (--config).
var configPathOverride string

// SetConfigPathOverride makes every subsequent config read and write use
// the given file instead of the default location.
func SetConfigPathOverride(path string) error {
	if path == "" {
		configPathOverride = ""
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}
	configPathOverride = path
	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	if configPathOverride != "" {
		return configPathOverride, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "labsync"), nil
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func parseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
