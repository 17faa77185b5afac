package loader

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/schema"
)

// LoadSettings loads the runner settings. An empty path yields the defaults;
// otherwise the file is validated against the settings schema and decoded
// over the defaults, so unset fields keep their default value.
func LoadSettings(fs afero.Fs, path string) (*model.Settings, error) {
	settings := model.DefaultSettings()
	if path == "" {
		return &settings, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateSettingsYAML(data); err != nil {
		return nil, &model.ConfigurationError{Field: path, Reason: "invalid settings", Err: err}
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	if err := checkIntervals(settings); err != nil {
		return nil, &model.ConfigurationError{Field: path, Reason: "invalid settings", Err: err}
	}
	return &settings, nil
}

// checkIntervals rejects waits that would make polling hammer the server
func checkIntervals(settings model.Settings) error {
	for _, wait := range []struct {
		name string
		d    time.Duration
	}{
		{"pollInterval", settings.PollInterval},
		{"triggerDelay", settings.TriggerDelay},
		{"statusRetry.delay", settings.StatusRetry.Delay},
	} {
		if wait.d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %s", wait.name, wait.d)
		}
	}
	return nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment. Variables already set are kept. A missing file is not an error
// unless required is set.
func LoadEnvFile(fs afero.Fs, path string, required bool) error {
	if path == "" {
		return nil
	}
	f, err := fs.Open(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open environment file: %w", err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("failed to parse environment file %s: %w", path, err)
	}
	for key, value := range env {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	logrus.WithFields(logrus.Fields{"file": path, "variables": len(env)}).Debug("Loaded environment file.")
	return nil
}

// Credentials resolves the basic auth user and API token. The JENKINS_USER
// environment variable overrides the configured user.
func Credentials(auth model.AuthSettings) (user, token string) {
	user = auth.User
	if env := os.Getenv("JENKINS_USER"); env != "" {
		user = env
	}
	if auth.TokenEnv != "" {
		token = os.Getenv(auth.TokenEnv)
	}
	return user, token
}
