package kinesis

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings for connecting to Kinesis. Credentials come from
// the default AWS credential chain.
type Config struct {
	Region   string `env:"KINESIS_REGION"`   // Empty uses the region from the AWS environment
	Endpoint string `env:"KINESIS_ENDPOINT"` // Override for local emulators such as LocalStack

	// SDKMaxAttempts caps the AWS SDK's own retries per call. The producer
	// retries on top of this, so the default leaves retrying to it.
	SDKMaxAttempts int `env:"KINESIS_SDK_MAX_ATTEMPTS" envDefault:"1"`
}

// LoadConfig loads Kinesis configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse kinesis config: %w", err)
	}
	return cfg, nil
}
