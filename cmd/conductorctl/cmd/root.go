package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conductor-telemetry/conductor/pkg/client"
	"github.com/conductor-telemetry/conductor/pkg/codec"
)

var (
	serverURL    string
	outputFormat string
	wireFormat   string
	cfgFile      string
	apiKey       string
	insecure     bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "conductorctl",
	Short: "CLI for the conductor telemetry server",
	Long:  `conductorctl manages producers on a conductor server: register schemas, emit test data, and inspect what is registered.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.conductorctl/config)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "conductor server URL (default from config or http://localhost:9090)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&wireFormat, "wire", "json", "wire encoding: json or msgpack")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".conductorctl"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.BindEnv("api_key", "CONDUCTOR_API_KEY")
	viper.BindEnv("server_url", "CONDUCTOR_URL")

	if err := viper.ReadInConfig(); err == nil {
		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
	if serverURL == "" {
		serverURL = viper.GetString("server_url")
	}
	if serverURL == "" {
		serverURL = "http://localhost:9090"
	}
	serverURL = strings.TrimRight(serverURL, "/")
}

// newClient builds a client from the resolved global flags.
func newClient() (*client.Client, error) {
	format := codec.JSON
	if wireFormat == "msgpack" {
		format = codec.Msgpack
	}
	return client.New(serverURL, client.Options{
		Format:             format,
		APIKey:             apiKey,
		Timeout:            15 * time.Second,
		InsecureSkipVerify: insecure,
	})
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}
