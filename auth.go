package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gdrive-go/internal/remote/gdrive"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Google Drive in the browser",
		Long: `Authenticate with Google Drive. A local callback server receives the
authorization code; the token is saved to token_file with owner-only
permissions and refreshed automatically afterwards.

The OAuth client is read from client_secret (a JSON file downloaded from
the Google Cloud console).`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("no-browser", false, "print the authorization URL instead of opening a browser")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved authentication token",
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	noBrowser, err := cmd.Flags().GetBool("no-browser")
	if err != nil {
		return err
	}

	oauthCfg, err := gdrive.OAuthConfig(cc.Cfg.ClientSecret)
	if err != nil {
		return err
	}

	openURL := func(url string) error {
		// The URL must always be visible, even with --quiet.
		fmt.Fprintf(os.Stderr, "To sign in, visit:\n  %s\n", url)

		if noBrowser {
			return nil
		}

		if err := openBrowser(url); err != nil {
			cc.Logger.Debug("could not open browser", slog.String("error", err.Error()))
		}

		return nil
	}

	if _, err := gdrive.Login(ctx, oauthCfg, cc.Cfg.TokenFile, openURL, cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Login successful.\n")

	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := gdrive.Logout(cc.Cfg.TokenFile, cc.Logger); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// openBrowser asks the desktop to open url.
func openBrowser(url string) error {
	var name string

	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		name = "xdg-open"
	}

	return exec.Command(name, url).Start()
}
