package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	adminAddr    string
	outputFormat string
	cfgFile      string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "osqueryctl",
	Short: "CLI for a running osqueryd supervisor",
	Long:  `osqueryctl queries and watches a running osqueryd watchdog through its local admin endpoint.`,
}

// Execute adds all child commands and runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.osqueryctl/config)")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "admin-addr", "", "watchdog admin address (default from config or 127.0.0.1:9001)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
}

// initConfig resolves admin-addr with flag > env > config-file
// precedence, mirroring the teacher's master-url resolution.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "osqueryctl: finding home directory: %v\n", err)
			os.Exit(1)
		}
		configDir := filepath.Join(home, ".osqueryctl")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("admin_addr", "OSQUERYCTL_ADMIN_ADDR")

	if err := viper.ReadInConfig(); err == nil {
		if adminAddr == "" && viper.GetString("admin_addr") != "" {
			adminAddr = viper.GetString("admin_addr")
		}
	}

	if adminAddr == "" && viper.GetString("admin_addr") != "" {
		adminAddr = viper.GetString("admin_addr")
	}

	if adminAddr == "" {
		adminAddr = "127.0.0.1:9001"
	}
}

// GetAdminAddr returns the resolved admin endpoint address.
func GetAdminAddr() string {
	return adminAddr
}

// IsJSONOutput reports whether --output=json was requested.
func IsJSONOutput() bool {
	return outputFormat == "json"
}
