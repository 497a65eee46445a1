package handeye

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks field combinations that cannot be defaulted.
func (c *Config) Validate() error {
	if (c.Inputs.FileA == "") != (c.Inputs.FileB == "") {
		return fmt.Errorf("inputs.fileA and inputs.fileB must be set together")
	}
	if (c.Inputs.URLA == "") != (c.Inputs.URLB == "") {
		return fmt.Errorf("inputs.urlA and inputs.urlB must be set together")
	}
	for i, m := range c.Methods {
		if _, err := ResolveMethodAlias(m); err != nil {
			return fmt.Errorf("methods[%d]: %w", i, err)
		}
	}
	if c.Selection.MinRotationDeg != nil && *c.Selection.MinRotationDeg < 0 {
		return fmt.Errorf("selection.minRotationDeg must not be negative")
	}
	if c.MQTT.RequestTopic != "" && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt.requestTopic is set")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range", c.HTTP.Port)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
