package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var (
	// CommandContext is a variable that allows overriding the command creation for testing
	CommandContext = exec.CommandContext
	// LookPath is a variable that allows overriding the lookup behavior for testing
	LookPath = exec.LookPath
	// LookupEnv is a variable that allows overriding environment lookups for testing
	LookupEnv = os.LookupEnv
)

const (
	onePasswordPrefix = "op://"
	envPrefix         = "env:"
)

// ResolveSecretReference resolves a 1Password secret reference
// (op://vault/item/field) or an environment reference (env:NAME).
// Returns the resolved value and whether it was a secret reference.
// Any other value is returned unchanged.
func ResolveSecretReference(ctx context.Context, value string) (string, bool, error) {
	switch {
	case strings.HasPrefix(value, onePasswordPrefix):
		resolved, err := readOnePassword(ctx, value)
		return resolved, true, err
	case strings.HasPrefix(value, envPrefix):
		name := strings.TrimPrefix(value, envPrefix)
		if name == "" {
			return "", true, fmt.Errorf("empty environment variable name in %q", value)
		}
		resolved, ok := LookupEnv(name)
		if !ok || resolved == "" {
			return "", true, fmt.Errorf("environment variable %s is not set", name)
		}
		return resolved, true, nil
	default:
		return value, false, nil
	}
}

func readOnePassword(ctx context.Context, ref string) (string, error) {
	// Check if op CLI is available
	if _, err := LookPath("op"); err != nil {
		return "", fmt.Errorf("1Password CLI (op) not found in PATH: %w", err)
	}

	output, err := CommandContext(ctx, "op", "read", ref).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to read secret from 1Password: %s", string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to read secret from 1Password: %w", err)
	}

	// Trim any whitespace/newlines from the output
	return strings.TrimSpace(string(output)), nil
}
