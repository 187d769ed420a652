package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/atlassian-client/pkg/bitbucket"
	"github.com/Sternrassler/atlassian-client/pkg/client"
	"github.com/Sternrassler/atlassian-client/pkg/ratelimit"
	"github.com/spf13/viper"
)

// ServerConfig configures the connection to one server.
type ServerConfig struct {
	URL        string        `mapstructure:"url"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Prefix     string        `mapstructure:"prefix"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	Insecure   bool          `mapstructure:"insecure"`
	CertFile   string        `mapstructure:"cert_file"`
	KeyFile    string        `mapstructure:"key_file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Burst      int           `mapstructure:"burst"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

// clientConfig maps the file settings onto a transport configuration.
func (s ServerConfig) clientConfig(component string) client.Config {
	return client.Config{
		BaseURL:            s.URL,
		Host:               s.Host,
		Port:               s.Port,
		Prefix:             s.Prefix,
		Username:           s.Username,
		Password:           s.Password,
		InsecureSkipVerify: s.Insecure,
		CertFile:           s.CertFile,
		KeyFile:            s.KeyFile,
		Timeout:            s.Timeout,
		RateLimit:          s.RateLimit,
		Burst:              s.Burst,
		MaxBackoff:         s.MaxBackoff,
		UserAgent:          "atlctl/" + version,
		Component:          component,
	}
}

// AppConfig is the top-level atlctl configuration.
type AppConfig struct {
	LogLevel   string       `mapstructure:"log_level"`
	LogPretty  bool         `mapstructure:"log_pretty"`
	KeyringDir string       `mapstructure:"keyring_dir"`
	Bamboo     ServerConfig `mapstructure:"bamboo"`
	Bitbucket  ServerConfig `mapstructure:"bitbucket"`
}

// DefaultConfigPath returns ~/.config/atlctl/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "atlctl", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_pretty", false)
	v.SetDefault("keyring_dir", filepath.Join(filepath.Dir(DefaultConfigPath()), "credentials"))

	for server, port := range map[string]int{"bamboo": client.DefaultPort, "bitbucket": bitbucket.DefaultPort} {
		v.SetDefault(server+".url", "")
		v.SetDefault(server+".host", client.DefaultHost)
		v.SetDefault(server+".port", port)
		v.SetDefault(server+".prefix", "")
		v.SetDefault(server+".username", "")
		v.SetDefault(server+".password", "")
		v.SetDefault(server+".insecure", false)
		v.SetDefault(server+".cert_file", "")
		v.SetDefault(server+".key_file", "")
		v.SetDefault(server+".timeout", client.DefaultTimeout)
		v.SetDefault(server+".rate_limit", 0.0)
		v.SetDefault(server+".burst", 1)
		v.SetDefault(server+".max_backoff", ratelimit.MaxWait)
	}
}

// LoadConfig reads the YAML file at path and overlays ATL_* environment
// variables (ATL_BAMBOO_URL, ATL_BITBUCKET_PASSWORD, ...). A missing file
// is not an error when path is the default location.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ATL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case explicit:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			// Defaults and environment only.
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
