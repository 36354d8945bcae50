// Command gigctl drives the gigmarket API from a terminal: sign in, browse
// and publish gigs, manage bookings and chat.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/client"
)

var (
	apiURL string
	token  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "gigctl",
	Short:         "Command line client for the gigmarket API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("GIGMARKET_URL", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("GIGMARKET_TOKEN"), "session token (defaults to the saved login)")

	rootCmd.AddCommand(loginCmd, signupCmd, meCmd)
	rootCmd.AddCommand(gigsCmd, bookCmd, bookingsCmd, chatCmd)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// newClient builds an API client with the flag token or the saved one.
func newClient() *client.Cached {
	t := token
	if t == "" {
		t, _ = readToken()
	}
	return client.NewCached(client.New(apiURL, t), 30*time.Second)
}

func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gigctl", "token"), nil
}

func readToken() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(t string) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(t+"\n"), 0o600)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain turns API validation errors into one line per field.
func explain(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Errors) == 0 {
		return err
	}
	var b strings.Builder
	b.WriteString(apiErr.Message)
	for field, msgs := range apiErr.Errors {
		fmt.Fprintf(&b, "\n  %s: %s", field, strings.Join(msgs, ", "))
	}
	return errors.New(b.String())
}
