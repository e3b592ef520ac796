package config

import (
	"fmt"
	"os"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// ReadFile loads a flat YAML mapping keyed by the same names as the
// environment variables:
//
//	STORE_DRIVER: postgres
//	SWEEP_INTERVAL: 30s
//	PUBLIC_API_KEYS: [pub_a, pub_b]
//
// Sequences are joined with commas so list keys read the same as from env.
func ReadFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch x := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(x))
			for _, p := range x {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("config file %s: key %s must be a scalar or a list", path, k)
		default:
			out[key] = fmt.Sprint(x)
		}
	}
	return out, nil
}
