package model

import "time"

// Settings holds the runner tunables. Every field has a default, so the
// settings file is optional.
type Settings struct {
	PollInterval time.Duration  `yaml:"pollInterval"`
	TriggerDelay time.Duration  `yaml:"triggerDelay"`
	StatusRetry  RetrySettings  `yaml:"statusRetry"`
	HTTP         HTTPSettings   `yaml:"http"`
	Auth         AuthSettings   `yaml:"auth"`
	Sheets       SheetNames     `yaml:"sheets"`
	Metrics      MetricsOptions `yaml:"metrics"`
}

// RetrySettings bounds the retries of the first status check of a build
type RetrySettings struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// HTTPSettings configures the transport to the CI server
type HTTPSettings struct {
	Timeout  time.Duration `yaml:"timeout"`
	RetryMax int           `yaml:"retryMax"`
}

// AuthSettings configures basic auth. The token is read from the named
// environment variable, never from the settings file itself.
type AuthSettings struct {
	User     string `yaml:"user"`
	TokenEnv string `yaml:"tokenEnv"`
}

// SheetNames names the workbook sheets
type SheetNames struct {
	JobDetails      string `yaml:"jobDetails"`
	BuildParameters string `yaml:"buildParameters"`
	Result          string `yaml:"result"`
}

// MetricsOptions configures the optional pushgateway export
type MetricsOptions struct {
	Pushgateway string `yaml:"pushgateway"`
	Job         string `yaml:"job"`
}

// DefaultSettings returns the settings used when no settings file is given
func DefaultSettings() Settings {
	return Settings{
		PollInterval: 30 * time.Second,
		TriggerDelay: 30 * time.Second,
		StatusRetry: RetrySettings{
			Attempts: 2,
			Delay:    30 * time.Second,
		},
		HTTP: HTTPSettings{
			Timeout:  30 * time.Second,
			RetryMax: 3,
		},
		Auth: AuthSettings{
			TokenEnv: "JENKINS_API_TOKEN",
		},
		Sheets: SheetNames{
			JobDetails:      "Job Details",
			BuildParameters: "Build Parameters",
			Result:          "Result",
		},
		Metrics: MetricsOptions{
			Job: "litejob",
		},
	}
}
