// Package config wires viper, .env files and credential lookup for every skill.
//
// Values resolve in this order: explicit flags bound into viper, the process
// environment (plain names such as LINEAR_API_KEY or SKILLBOX_ prefixed ones),
// variables loaded from .env files (never overriding the environment), and
// finally ~/.skillbox/config.yaml.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for skillbox-specific environment variables.
const EnvPrefix = "SKILLBOX"

// Credential environment variable names.
const (
	LinearAPIKey     = "LINEAR_API_KEY"
	LinearOAuthToken = "LINEAR_OAUTH_TOKEN"
	JinaAPIKey       = "JINA_API_KEY"
	GeminiAPIKey     = "GEMINI_API_KEY"
	OpenAIAPIKey     = "OPENAI_API_KEY"
)

var credentialHints = map[string]string{
	LinearAPIKey: "create a personal API key at https://linear.app/settings/api",
	JinaAPIKey:   "get a key at https://jina.ai/api-dashboard",
	GeminiAPIKey: "create a key at https://aistudio.google.com/apikey",
	OpenAIAPIKey: "create a key at https://platform.openai.com/api-keys",
}

// MissingCredentialError reports a required credential that is not configured.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	msg := e.Name + " is not set"
	if hint, ok := credentialHints[e.Name]; ok {
		msg += " (" + hint + ")"
	}
	return msg
}

// Init loads .env files and configures viper defaults, environment binding
// and the optional config file.
func Init(dotenvPaths ...string) error {
	if len(dotenvPaths) == 0 {
		dotenvPaths = DefaultDotenvPaths()
	}
	if err := LoadDotenv(dotenvPaths...); err != nil {
		return err
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "fmt")
	viper.SetDefault("output_dir", ".")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillbox")
	viper.AddConfigPath(".")

	// A missing config file is fine; a broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	return nil
}

// DefaultDotenvPaths returns the .env files consulted at startup, highest precedence first.
func DefaultDotenvPaths() []string {
	paths := []string{".env"}
	if dir, err := HomeDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	return paths
}

// LoadDotenv loads the given .env files that exist. Variables already present
// in the environment are left untouched, so earlier files win over later ones.
func LoadDotenv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
	}
	return nil
}

// Lookup returns the value of a credential or setting by its environment
// variable name, also honouring the SKILLBOX_ prefixed form and the
// lower-cased key in the config file.
func Lookup(name string) string {
	key := strings.ToLower(name)
	_ = viper.BindEnv(key, EnvPrefix+"_"+name, name)
	return strings.TrimSpace(viper.GetString(key))
}

// Credential returns a required credential or a MissingCredentialError.
func Credential(name string) (string, error) {
	if v := Lookup(name); v != "" {
		return v, nil
	}
	return "", &MissingCredentialError{Name: name}
}

// HomeDir returns the skillbox state directory (~/.skillbox).
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".skillbox"), nil
}

// LedgerDir returns the directory holding the per-tool cost ledgers.
func LedgerDir() (string, error) {
	if dir := viper.GetString("ledger_dir"); dir != "" {
		return dir, nil
	}
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "costs"), nil
}

// OutputDir returns the default directory for generated files.
func OutputDir() string {
	if dir := viper.GetString("output_dir"); dir != "" {
		return dir
	}
	return "."
}
