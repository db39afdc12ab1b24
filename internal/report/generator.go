// Package report renders single-file HTML reports from Allure result files.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IndexFile is the report file Generate leaves in the output directory.
const IndexFile = "index.html"

// Generator renders the results in resultsDir into outDir/IndexFile.
type Generator interface {
	Generate(ctx context.Context, resultsDir, outDir string) error
}

// AllureCLI runs the allure command line tool.
type AllureCLI struct {
	binary      string
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewAllureCLI creates a generator that runs binary.
func NewAllureCLI(binary string) *AllureCLI {
	return &AllureCLI{binary: binary, execCommand: exec.CommandContext}
}

// Generate runs "allure generate <resultsDir> -o <outDir> --clean --single-file".
func (g *AllureCLI) Generate(ctx context.Context, resultsDir, outDir string) error {
	var stdout, stderr bytes.Buffer
	cmd := g.execCommand(ctx, g.binary, "generate", resultsDir, "-o", outDir, "--clean", "--single-file") //nolint:gosec // binary comes from config
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "no error output"
		}
		return fmt.Errorf("allure generate failed: %w: %s", err, msg)
	}
	if _, err := os.Stat(filepath.Join(outDir, IndexFile)); err != nil {
		return fmt.Errorf("allure generate produced no %s: %w", IndexFile, err)
	}
	return nil
}
