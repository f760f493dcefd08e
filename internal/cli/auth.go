package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dittorahmat/labsync/internal/auth"
	"github.com/dittorahmat/labsync/internal/config"
	"github.com/dittorahmat/labsync/internal/types"
	"github.com/dittorahmat/labsync/internal/utils"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage remote store credentials",
	Long: `Manage the per-profile secrets used to reach the remote store: the
SharePoint client secret or a Google Drive service-account key. Secrets
go to the system keyring when available, with an encrypted-file fallback.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store credentials for a profile",
	RunE:  runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which credentials a profile holds",
	RunE:  runAuthShow,
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete a profile's credentials",
	RunE:  runAuthRemove,
}

var (
	authClientSecret    string
	authCredentialsFile string
)

func init() {
	authSetCmd.Flags().StringVar(&authClientSecret, "client-secret", "", "Azure AD client secret (SharePoint backend)")
	authSetCmd.Flags().StringVar(&authCredentialsFile, "credentials-file", "", "Service-account key file to import (Drive backend)")

	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authRemoveCmd)
	rootCmd.AddCommand(authCmd)
}

func newAuthManager() (*auth.Manager, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(configDir), nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	if authClientSecret == "" && authCredentialsFile == "" {
		return writeCLIError(out, "auth set", utils.NewAppError(
			utils.NewCLIError(utils.ErrCodeInvalidArgument,
				"provide --client-secret or --credentials-file").Build()))
	}

	mgr, err := newAuthManager()
	if err != nil {
		return writeCLIError(out, "auth set", err)
	}
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.AddWarning("STORAGE_BACKEND", warning, "warning")
	}

	secrets := &auth.Secrets{
		Profile:   flags.Profile,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if authClientSecret != "" {
		secrets.ClientSecret = authClientSecret
	}
	if authCredentialsFile != "" {
		data, err := os.ReadFile(authCredentialsFile)
		if err != nil {
			return writeCLIError(out, "auth set", utils.NewAppError(
				utils.NewCLIError(utils.ErrCodeInvalidArgument,
					fmt.Sprintf("failed to read credentials file: %v", err)).Build()))
		}
		secrets.DriveCredentialsJSON = string(data)
	}

	if err := mgr.SaveSecrets(flags.Profile, secrets); err != nil {
		return writeCLIError(out, "auth set", err)
	}

	return out.WriteSuccess("auth set", map[string]interface{}{
		"profile": flags.Profile,
		"storage": mgr.GetStorageBackend(),
	})
}

type authStatus struct {
	Profile             string `json:"profile"`
	Storage             string `json:"storage"`
	HasClientSecret     bool   `json:"hasClientSecret"`
	HasDriveCredentials bool   `json:"hasDriveCredentials"`
	UpdatedAt           string `json:"updatedAt,omitempty"`
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	mgr, err := newAuthManager()
	if err != nil {
		return writeCLIError(out, "auth show", err)
	}

	secrets, err := mgr.LoadSecrets(flags.Profile)
	if err != nil {
		return writeCLIError(out, "auth show", utils.NewAppError(
			utils.NewCLIError(utils.ErrCodeAuthRequired,
				fmt.Sprintf("no credentials stored for profile '%s'", flags.Profile)).Build()))
	}

	// Secret material itself is never printed.
	return out.WriteSuccess("auth show", &authStatus{
		Profile:             flags.Profile,
		Storage:             mgr.GetStorageBackend(),
		HasClientSecret:     secrets.ClientSecret != "",
		HasDriveCredentials: secrets.DriveCredentialsJSON != "",
		UpdatedAt:           secrets.UpdatedAt,
	})
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := config.NewOutputFormatter(config.OutputOptions{
		Format:  flags.OutputFormat,
		Quiet:   flags.Quiet,
		Verbose: flags.Verbose,
	})

	mgr, err := newAuthManager()
	if err != nil {
		return writeCLIError(out, "auth remove", err)
	}
	if err := mgr.DeleteSecrets(flags.Profile); err != nil {
		return writeCLIError(out, "auth remove", err)
	}

	return out.WriteSuccess("auth remove", map[string]interface{}{
		"profile": flags.Profile,
		"removed": true,
	})
}

func (s *authStatus) AsTableRenderer() types.TableRenderer {
	return s
}

func (s *authStatus) Headers() []string {
	return []string{"Key", "Value"}
}

func (s *authStatus) Rows() [][]string {
	return [][]string{
		{"Profile", s.Profile},
		{"Storage", s.Storage},
		{"Client secret", yesNo(s.HasClientSecret)},
		{"Drive credentials", yesNo(s.HasDriveCredentials)},
		{"Updated", config.FormatTime(s.UpdatedAt)},
	}
}

func (s *authStatus) EmptyMessage() string {
	return "No credentials stored"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
