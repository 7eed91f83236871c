package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/util"
)

// Settings is the resolved global configuration for one invocation.
type Settings struct {
	APIKey       string
	IdentityFile string
	SSHConfig    string
	Registry     string
}

// settingsFile is the yaml shape persisted at ~/.config/rp/config.yaml.
type settingsFile struct {
	APIKey       string `yaml:"api_key,omitempty"`
	IdentityFile string `yaml:"identity_file,omitempty"`
	SSHConfig    string `yaml:"ssh_config,omitempty"`
	Registry     string `yaml:"registry,omitempty"`
}

func settingsDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rp")
	}
	return util.ExpandPath("~/.config/rp")
}

func settingsPath() string {
	return filepath.Join(settingsDir(), "config.yaml")
}

// loadSettings reads the settings file (if present) and applies defaults and
// the RUNPOD_API_KEY environment override.
func loadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(settingsPath())
	v.SetConfigType("yaml")

	v.SetDefault("identity_file", "~/.ssh/runpod")
	v.SetDefault("ssh_config", "~/.ssh/config")
	v.SetDefault("registry", filepath.Join(settingsDir(), "pods.json"))

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Couldn't read settings file "+settingsPath(),
					"Fix or remove the file and try again")
			}
		}
	}

	s := &Settings{
		APIKey:       v.GetString("api_key"),
		IdentityFile: util.ExpandPath(v.GetString("identity_file")),
		SSHConfig:    util.ExpandPath(v.GetString("ssh_config")),
		Registry:     util.ExpandPath(v.GetString("registry")),
	}
	if envKey := os.Getenv("RUNPOD_API_KEY"); envKey != "" {
		s.APIKey = envKey
	}
	return s, nil
}

// ensureAPIKey returns the API key, prompting for it interactively and
// persisting the answer when it isn't configured yet.
func ensureAPIKey(s *Settings) (string, error) {
	if s.APIKey != "" {
		return s.APIKey, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New(errors.ErrConfig,
			"No RunPod API key configured",
			"Set RUNPOD_API_KEY or add api_key to "+util.ContractPath(settingsPath()))
	}

	fmt.Fprint(os.Stderr, "RunPod API key (input hidden): ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read the API key from the terminal",
			"Set RUNPOD_API_KEY instead")
	}

	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", errors.New(errors.ErrConfig,
			"Empty API key",
			"Find your key at https://www.runpod.io/console/user/settings")
	}

	s.APIKey = key
	if err := saveSettings(s); err != nil {
		return "", err
	}
	fmt.Fprintf(os.Stderr, "Saved to %s\n", util.ContractPath(settingsPath()))
	return key, nil
}

// saveSettings writes the settings file with 0600 perms (it holds the key).
func saveSettings(s *Settings) error {
	out := settingsFile{
		APIKey:       s.APIKey,
		IdentityFile: util.ContractPath(s.IdentityFile),
		SSHConfig:    util.ContractPath(s.SSHConfig),
		Registry:     util.ContractPath(s.Registry),
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't encode settings", "")
	}

	if err := os.MkdirAll(settingsDir(), 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't create settings directory "+settingsDir(), "")
	}
	if err := os.WriteFile(settingsPath(), data, 0o600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't write settings file "+settingsPath(), "")
	}
	return nil
}
