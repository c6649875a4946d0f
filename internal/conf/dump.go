package conf

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DumpYAML renders settings as YAML. The Sentry DSN is masked.
func DumpYAML(settings *Settings) ([]byte, error) {
	out := *settings
	if out.Sentry.DSN != "" {
		out.Sentry.DSN = "[REDACTED]"
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	return buf.Bytes(), nil
}
