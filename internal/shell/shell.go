// Package shell runs the external tool command lines the pipeline is
// configured with. Only exit status and combined output are modeled.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Run executes command through the shell in dir with extra environment
// variables appended to the inherited environment. It returns the combined
// output; a non-zero exit surfaces as an error alongside that output.
func Run(ctx context.Context, command, dir string, extraEnv map[string]string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("shell: command is empty")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), flatten(extraEnv)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("shell: %s: %w", firstWord(command), err)
	}
	return string(out), nil
}

func flatten(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}

func firstWord(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}
