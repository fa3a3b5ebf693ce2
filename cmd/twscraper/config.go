package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/derwolz/TwitterScraper/pkg/config"
	"github.com/derwolz/TwitterScraper/pkg/ui"
)

const defaultConfigPath = ".twscraper.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage twscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (TWSCRAPER_*, API_BASE_URL, API_TOKEN)
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to ./.twscraper.yaml, or to the path given
with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := configFile
		if path == "" {
			path = defaultConfigPath
		}
		if err := writeDefaultConfig(path); err != nil {
			fail("Failed to create configuration file", err)
		}
		ui.PrintSuccess("Configuration file created: " + path)
		fmt.Fprintln(ui.Output(), "\nNext steps:")
		fmt.Fprintln(ui.Output(), "1. Set api.base_url in the file")
		fmt.Fprintln(ui.Output(), "2. Store your key with 'twscraper auth login'")
		fmt.Fprintln(ui.Output(), "3. Start with 'twscraper collect <username>'")
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after applying every source. The API key is masked.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, globalFlags())
		if err != nil {
			fail("Failed to load configuration", err)
		}
		if err := showConfig(cfg, ui.Output()); err != nil {
			fail("Failed to format configuration", err)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration, including the API settings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile, globalFlags())
		if err != nil {
			fail("Configuration is invalid", err)
		}
		if err := cfg.ValidateAPI(); err != nil {
			ui.PrintWarning("API settings incomplete", strings.ReplaceAll(err.Error(), "\n", "; "))
			ui.PrintInfo("Hint", "a key saved with 'twscraper auth login' is used when api.api_key is empty")
			return
		}
		ui.PrintSuccess("Configuration is valid")
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return config.DefaultConfig().Save(path)
}

func showConfig(cfg *config.Config, w io.Writer) error {
	data, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
