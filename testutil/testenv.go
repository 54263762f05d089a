// Package testutil provides shared environment helpers for E2E tests. It
// depends only on stdlib so that E2E tests (which cannot import internal/)
// can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the live Drive tests.
const (
	EnvAllowedAccounts = "GDRIVE_GO_ALLOWED_TEST_ACCOUNTS"
	EnvTestAccount     = "GDRIVE_GO_TEST_ACCOUNT"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// TestAccount returns the account the live tests run against, or "" when
// none is configured. A configured account that is not in the allowlist
// crashes the process, so tests never touch a personal drive by accident.
func TestAccount() string {
	account := os.Getenv(EnvTestAccount)
	if account == "" {
		return ""
	}

	allowlist := os.Getenv(EnvAllowedAccounts)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s set but %s is not\n", EnvTestAccount, EnvAllowedAccounts)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == account {
			return account
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n",
		EnvTestAccount, account, EnvAllowedAccounts, allowlist)
	os.Exit(1)

	return ""
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

// CredentialDir returns .testdata/ under the module root, which holds
// client_secret.json and token.json for the test account. ok is false
// when the directory does not exist.
func CredentialDir(moduleRoot string) (dir string, ok bool) {
	dir = filepath.Join(moduleRoot, ".testdata")

	if _, err := os.Stat(dir); err != nil {
		return dir, false
	}

	return dir, true
}

// CopyFile copies a file from src to dst with the given permissions.
// Crashes on failure because tests cannot proceed without the file.
func CopyFile(src, dst string, perm os.FileMode) {
	data, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: cannot read %s: %v\n", src, err)
		fmt.Fprintln(os.Stderr, "Run 'gdrive-go login' with the test account and copy token.json to .testdata/.")
		os.Exit(1)
	}

	if writeErr := os.WriteFile(dst, data, perm); writeErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: writing %s: %v\n", dst, writeErr)
		os.Exit(1)
	}
}
