package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gospc/adapters/excel"
	"gospc/app"
	"gospc/domain/spc"
	"gospc/internal"
	"gospc/internal/config"
	"gospc/internal/container"
	"gospc/ports"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gospc",
		Short:         "Segmented-trend statistical process control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newStageCmd(),
		newSolveCmd(),
		newRunJobCmd(),
		newReportCmd(),
		newListCmd(),
		newMigrateCmd(),
		newGenerateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openContainer loads configuration and connects to the database when one is configured
func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.Open(ctx, cfg, internal.DefaultLogger)
}

// requireDatabase fails commands that only make sense against persistent storage
func requireDatabase(c *container.Container) error {
	if c.DB == nil {
		return fmt.Errorf("DATABASE_URL is required for this command")
	}
	return nil
}

type solveFlags struct {
	timeFrame  string
	sampleSize int
}

func (f *solveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.timeFrame, "time-frame", "", "Resampling width: native, d, w, 3d, 12h (default from SPC_TIME_FRAME)")
	cmd.Flags().IntVar(&f.sampleSize, "sample-size", 0, "Training window length (default from SPC_SAMPLE_SIZE)")
}

func (f *solveFlags) options(cmd *cobra.Command, persist bool) (app.AnalysisOptions, error) {
	opts := app.AnalysisOptions{SampleSize: f.sampleSize, Persist: persist}
	if cmd.Flags().Changed("time-frame") {
		tf, err := spc.ParseTimeFrame(f.timeFrame)
		if err != nil {
			return opts, err
		}
		opts.TimeFrame = &tf
	}
	return opts, nil
}

func readTable(path, dateColumn, layout string, metrics []string) (*spc.Table, error) {
	cfg := excel.DefaultReaderConfig()
	cfg.DateColumn = dateColumn
	cfg.Metrics = metrics
	if layout != "" {
		cfg.DateLayout = layout
	}
	var reader ports.TableReader = excel.NewDataReader(path, cfg)
	return reader.ReadTable()
}

// writeOutputs writes the workbook and report when their paths are set and prints
// the markdown summary otherwise
func writeOutputs(title string, analyses []*spc.Analysis, workbook, report string) error {
	if workbook != "" {
		if err := excel.WriteWorkbookFile(workbook, analyses); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", workbook)
	}
	if report != "" {
		if err := writeReport(report, title, analyses); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", report)
	}
	if workbook == "" && report == "" {
		_, err := os.Stdout.Write(app.RenderMarkdown(title, analyses))
		return err
	}
	return nil
}

func writeReport(path, title string, analyses []*spc.Analysis) error {
	content := app.RenderHTML(title, analyses)
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".markdown" {
		content = app.RenderMarkdown(title, analyses)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0o644)
}

// reportFailures prints per-metric failures and returns an error when nothing succeeded
func reportFailures(outcomes []app.MetricOutcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "metric %s: %v\n", o.Metric, o.Err)
		}
	}
	if len(outcomes) > 0 && failed == len(outcomes) {
		return fmt.Errorf("all %d metric(s) failed", failed)
	}
	return nil
}
