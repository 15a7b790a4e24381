package meterctlconfig

import (
	"github.com/sierrasoftworks/humane-errors-go"
)

type MeterctlConfig struct {
	Meters       []NamedMeter `yaml:"meters" mapstructure:"meters"`
	CurrentMeter string       `yaml:"current-meter" mapstructure:"current-meter"`
}

type NamedMeter struct {
	Name  string `yaml:"name" mapstructure:"name"`
	Meter Meter  `yaml:"meter" mapstructure:"meter"`
}

type Meter struct {
	Server string `yaml:"server" mapstructure:"server"`
}

func FindCurrentMeter(config MeterctlConfig) (*Meter, humane.Error) {
	for _, meter := range config.Meters {
		if meter.Name == config.CurrentMeter {
			return &meter.Meter, nil
		}
	}

	return nil, humane.New("current meter not found in configuration",
		"ensure you have a current-meter set in your configuration file, or use the --meter flag to specify one",
		"make sure you have a meter with the name you specified in the meters configuration",
	)
}
