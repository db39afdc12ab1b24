package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"testops/internal/config"
	"testops/internal/logging"
	"testops/internal/repository"
	"testops/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataPath   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "import",
	Short: "Import test cases from a JSON file",
	Long: `Import reads test cases in the same shape the API accepts and writes
each through the test case writer. The file holds either a JSON array of test
cases or an object with a "test_cases" array. Cases whose name is already
taken by an active case are skipped.`,
	SilenceUsage: true,
	RunE:         runImport,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to config file")
	rootCmd.Flags().StringVar(&dataPath, "data", "examples/test-cases.json", "Path to test data JSON file")
}

// importFile accepts a bare array or {"test_cases": [...]}.
type importFile struct {
	TestCases []service.TestCasePayload `json:"test_cases"`
}

func readPayloads(data []byte) ([]service.TestCasePayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var cases []service.TestCasePayload
		if err := json.Unmarshal(data, &cases); err != nil {
			return nil, err
		}
		return cases, nil
	}
	var file importFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.TestCases, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log, os.Stderr)

	db, err := repository.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()
	if err := repository.Migrate(db); err != nil {
		return err
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("read data file: %w", err)
	}
	payloads, err := readPayloads(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", dataPath, err)
	}

	// Attachments are not part of an import, so no file store is needed.
	cases := service.NewTestCaseService(repository.NewStore(db), nil, cfg.Listing, log, nil)
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	var created, skipped, failed int
	fmt.Fprintln(out, "Importing test cases...")
	for i := range payloads {
		p := &payloads[i]
		view, err := cases.Create(ctx, p)
		var conflict *service.ConflictError
		switch {
		case errors.As(err, &conflict):
			skipped++
			fmt.Fprintln(out, color.YellowString("  ⏭  Test '%s' already exists, skipping", p.Name))
		case err != nil:
			failed++
			fmt.Fprintln(out, color.RedString("  ✗ Failed to create test '%s': %v", p.Name, err))
		default:
			created++
			fmt.Fprintln(out, color.GreenString("  ✓ Created test: %s (id %d)", view.Name, view.ID))
			for _, w := range view.Warnings {
				fmt.Fprintln(out, color.YellowString("    ⚠  %s", w.Message))
			}
		}
	}

	fmt.Fprintf(out, "\nImport completed: %d created, %d skipped, %d failed\n", created, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d test cases failed to import", failed)
	}
	return nil
}
