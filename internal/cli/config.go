package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opsdeck/opsdeck/internal/client"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// Environment override variables. They take precedence over the config file
// and may be supplied via a .env file in the working directory.
const (
	envServerURL = "OPSDECK_SERVER"
	envTimeoutMS = "OPSDECK_TIMEOUT_MS"
)

// Config represents the configuration for the opsdeck CLI.
// It contains server connection details and the default call deadline; both
// are resolved once at process start.
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version"`
	// ServerURL is the base URL of the opsdeck server
	ServerURL string `yaml:"server_url" validate:"required,startswith=http"`
	// TimeoutMillis is the default per-call deadline in milliseconds
	TimeoutMillis int `yaml:"timeout_ms" validate:"gte=0"`
}

var config *Config

var validate = validator.New()

// GetDefaultConfigPath returns the default path for the config file
// It uses the OS-specific config directory (e.g., ~/.config/opsdeck on Linux)
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "opsdeck", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file, applies any
// environment overrides, and validates the result.
// If no file is specified, it uses the default config location.
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}

	applyEnvOverrides(&c)
	c.ServerURL = MorphServer(c.ServerURL)

	if err := validate.Struct(&c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	config = &c
	return nil
}

// applyEnvOverrides lets environment variables override file values. A .env
// file in the working directory is honored if present.
func applyEnvOverrides(c *Config) {
	cwd, err := os.Getwd()
	if err == nil {
		_ = godotenv.Load(filepath.Join(cwd, ".env")) // no error if .env doesn't exist
	}

	if v := os.Getenv(envServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(envTimeoutMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			c.TimeoutMillis = ms
		}
	}
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the current configuration to the specified file
// If no file is specified, it uses the default config location
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// MorphServer ensures the server URL is properly formatted
// Adds https:// prefix if missing and removes trailing slashes
func MorphServer(server string) string {
	if server == "" {
		return server
	}

	server = strings.TrimRight(server, "/")

	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "https://" + server
	}

	return server
}

// GetServerURL returns the properly formatted server URL
func (cfg *Config) GetServerURL() string {
	return MorphServer(cfg.ServerURL)
}

// Timeout returns the default per-call deadline, falling back to the
// pipeline default when unset.
func (cfg *Config) Timeout() time.Duration {
	if cfg.TimeoutMillis <= 0 {
		return client.DefaultRequestTimeout
	}
	return time.Duration(cfg.TimeoutMillis) * time.Millisecond
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `Manage CLI configuration settings like server connection and the default request timeout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverFlag, _ := cmd.Flags().GetString("server")
		if serverFlag != "" {
			timeoutFlag, _ := cmd.Flags().GetInt("timeout-ms")
			return setServerConfig(serverFlag, timeoutFlag)
		}

		cmd.Help()
		return nil
	},
}

func init() {
	configCmd.Flags().String("server", "", "Set the server base URL (e.g., https://console.example.com)")
	configCmd.Flags().Int("timeout-ms", 0, "Default per-request timeout in milliseconds")

	rootCmd.AddCommand(configCmd)
}

// setServerConfig sets the server configuration in the config file
func setServerConfig(server string, timeoutMillis int) error {
	configPath := configFile
	if configPath == "" {
		var err error
		configPath, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	cfg := &Config{
		Version:       "0.1.0",
		ServerURL:     MorphServer(server),
		TimeoutMillis: timeoutMillis,
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.WriteConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]string{
			"server":      cfg.ServerURL,
			"config_file": configPath,
		})
	} else {
		fmt.Printf("Server configured: %s\n", cfg.ServerURL)
		fmt.Printf("Config file: %s\n", configPath)
	}

	return nil
}
