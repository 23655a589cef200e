package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultEnvFiles are searched, in order, by LoadDotEnv.
var DefaultEnvFiles = []string{".env", "../.env", "../../.env"}

// LoadDotEnv reads KEY=VALUE lines from the first readable file in paths into
// the process environment. Variables that are already set win. A missing
// file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = DefaultEnvFiles
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			if _, set := os.LookupEnv(key); set {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return errors.Wrapf(err, "set %s from %s", key, path)
			}
		}
		return nil
	}
	return nil
}
