package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/storepos/internal/config"
)

// EnvCheckResult lists the environment overrides that LoadConfig will apply.
type EnvCheckResult struct {
	Overrides map[string]string // STOREPOS_* variables (masked values)
	Warnings  []string
}

// secretKeys are masked when printed.
var secretKeys = map[string]bool{
	config.EnvPrefix + "SERVER_DATABASE_URL": true,
}

// CheckEnv inspects environ, as returned by os.Environ.
func CheckEnv(environ []string) *EnvCheckResult {
	result := &EnvCheckResult{Overrides: make(map[string]string)}
	for _, kv := range environ {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(key, config.EnvPrefix):
			if secretKeys[key] {
				val = maskSecret(val)
			}
			result.Overrides[key] = val
		case key == "DATABASE_URL":
			result.Warnings = append(result.Warnings,
				"DATABASE_URL is only read by the codes commands when server.database_url is empty; serve needs "+config.EnvPrefix+"SERVER_DATABASE_URL")
		}
	}
	return result
}

// PrintEnvCheck prints the environment check results
func PrintEnvCheck(w io.Writer, result *EnvCheckResult) {
	fmt.Fprintln(w, "=== Environment Overrides ===")
	if len(result.Overrides) == 0 {
		fmt.Fprintln(w, "No "+config.EnvPrefix+"* variables set")
	}
	keys := make([]string, 0, len(result.Overrides))
	for k := range result.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "   - %s = %s\n", k, result.Overrides[k])
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠ Warning: %s\n", warn)
	}
	fmt.Fprintln(w, "=============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
