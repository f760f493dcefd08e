package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save the config file. List-valued keys
(targetSheets, qcPatterns, keyFields, extensions, skipFolderNames) take
comma-separated values.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	cfg, err := loadConfig()
	if err != nil {
		return writeConfigError(out, "config show", err)
	}
	return out.WriteSuccess("config show", &configView{cfg})
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	cfg, err := loadConfig()
	if err != nil {
		return writeConfigError(out, "config set", err)
	}

	key, value := args[0], args[1]
	if err := applyConfigValue(cfg, key, value); err != nil {
		return writeConfigError(out, "config set", err)
	}
	if err := cfg.Validate(); err != nil {
		return writeConfigError(out, "config set", err)
	}
	if err := cfg.Save(); err != nil {
		return writeCLIError(out, "config set", err)
	}

	return out.WriteSuccess("config set", map[string]interface{}{
		"key":   key,
		"value": value,
	})
}

func applyConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "backend":
		cfg.Backend = config.StoreBackend(value)
	case "siteUrl":
		cfg.SiteURL = value
	case "tenantId":
		cfg.TenantID = value
	case "clientId":
		cfg.ClientID = value
	case "docLibrary":
		cfg.DocLibrary = value
	case "folderPath":
		cfg.FolderPath = value
	case "driveRootFolderId":
		cfg.DriveRootFolderID = value
	case "driveCredentialsFile":
		cfg.DriveCredentialsFile = value
	case "targetSheets":
		cfg.TargetSheets = splitList(value)
	case "sheetMatch":
		cfg.SheetMatch = config.MatchStrategy(value)
	case "qcPatterns":
		cfg.QCPatterns = splitList(value)
	case "keyFields":
		cfg.KeyFields = splitList(value)
	case "extensions":
		cfg.Extensions = splitList(value)
	case "skipFolderPrefix":
		cfg.SkipFolderPrefix = value
	case "skipFolderNames":
		cfg.SkipFolderNames = splitList(value)
	case "masterPath":
		cfg.MasterPath = value
	case "ledgerPath":
		cfg.LedgerPath = value
	case "historyPath":
		cfg.HistoryPath = value
	case "concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("concurrency must be an integer: %q", value)
		}
		cfg.Concurrency = n
	case "maxRetries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxRetries must be an integer: %q", value)
		}
		cfg.MaxRetries = n
	case "logLevel":
		cfg.LogLevel = value
	case "defaultProfile":
		cfg.DefaultProfile = value
	default:
		return fmt.Errorf("unknown configuration key: %q", key)
	}
	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// configView renders the effective configuration, never secrets.
type configView struct {
	cfg *config.Config
}

func (v *configView) MarshalJSON() ([]byte, error) {
	type alias config.Config
	return json.Marshal((*alias)(v.cfg))
}

func (v *configView) AsTableRenderer() types.TableRenderer {
	return v
}

func (v *configView) Headers() []string {
	return []string{"Key", "Value"}
}

func (v *configView) Rows() [][]string {
	c := v.cfg
	return [][]string{
		{"backend", string(c.Backend)},
		{"siteUrl", c.SiteURL},
		{"tenantId", c.TenantID},
		{"clientId", c.ClientID},
		{"docLibrary", c.DocLibrary},
		{"folderPath", c.FolderPath},
		{"driveRootFolderId", c.DriveRootFolderID},
		{"targetSheets", strings.Join(c.TargetSheets, ", ")},
		{"sheetMatch", string(c.SheetMatch)},
		{"qcPatterns", strings.Join(c.QCPatterns, ", ")},
		{"keyFields", strings.Join(c.KeyFields, ", ")},
		{"extensions", strings.Join(c.Extensions, ", ")},
		{"skipFolderPrefix", c.SkipFolderPrefix},
		{"skipFolderNames", strings.Join(c.SkipFolderNames, ", ")},
		{"masterPath", c.MasterPath},
		{"ledgerPath", c.LedgerPath},
		{"concurrency", strconv.Itoa(c.Concurrency)},
		{"maxRetries", strconv.Itoa(c.MaxRetries)},
		{"logLevel", c.LogLevel},
	}
}

func (v *configView) EmptyMessage() string {
	return "No configuration found"
}
