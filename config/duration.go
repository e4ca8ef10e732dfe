package config

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-timebox/envutil"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads from YAML either as a Go duration
// string ("1.5s") or as an integer number of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: duration must be a scalar", ErrInvalidConfig, node.Line)
	}

	parsed, err := envutil.ParseMillisOrDuration(node.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrInvalidConfig, node.Line, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
