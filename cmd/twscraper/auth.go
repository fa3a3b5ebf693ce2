package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/derwolz/TwitterScraper/pkg/auth"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

var (
	loginBaseURL string
	logoutAll    bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API keys securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your API key or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API key securely",
	Long: `Store an API key in the system keychain or the encrypted credential file.
The key is read without echo. Without a name the key is saved as "default",
which collect uses when no key is configured.`,
	Example: `  twscraper auth login
  twscraper auth login staging --base-url https://staging.example.com/api`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Args:  cobra.NoArgs,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "API base URL bound to this key")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored credential")
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("Failed to initialize credential manager", err)
	}

	name := auth.DefaultName
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.PrintAPIKeyGuide(ui.Output())

	if existing, _ := manager.Retrieve(name); existing != nil && existing.Name == name {
		if !confirm(reader, fmt.Sprintf("Credential '%s' already exists. Replace it?", name)) {
			return
		}
	}

	fmt.Print("API key (hidden): ")
	key, err := readSecret(reader)
	if err != nil {
		fail("Failed to read API key", err)
	}
	if key == "" {
		fail("API key is required", nil)
	}

	cred := &auth.Credential{
		Name:         name,
		APIKey:       key,
		BaseURL:      loginBaseURL,
		LastModified: time.Now(),
	}
	if err := manager.Store(cred); err != nil {
		fail("Failed to store credentials", err)
	}

	ui.PrintSuccess("Credential saved: " + name)
	ui.PrintInfo("API key", auth.Sanitize(cred).APIKey)
	if name != auth.DefaultName {
		ui.PrintWarning("Only the default credential is used automatically",
			"select this one with TWSCRAPER_API_KEY or api.api_key")
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("Failed to initialize credential manager", err)
	}
	reader := bufio.NewReader(os.Stdin)

	if logoutAll {
		if !confirm(reader, "Remove ALL stored credentials?") {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			fail("Failed to remove credentials", err)
		}
		ui.PrintSuccess("All credentials removed")
		return
	}

	name := auth.DefaultName
	if len(args) > 0 {
		name = args[0]
	}
	if err := manager.Delete(name); err != nil {
		fail("Failed to remove credential", err)
	}
	ui.PrintSuccess("Credential removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fail("Failed to initialize credential manager", err)
	}

	creds, err := manager.List()
	if err != nil {
		fail("Failed to list credentials", err)
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored credentials", "use 'twscraper auth login' to add one")
		return
	}
	ui.RenderCredentials(ui.Output(), creds)
}

func confirm(reader *bufio.Reader, question string) bool {
	fmt.Printf("%s (y/N): ", question)
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// readSecret reads a line from stdin without echo when it is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
