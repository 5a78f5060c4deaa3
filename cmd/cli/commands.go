package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gospc/app"
	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal/config"
	"gospc/internal/migration"
	"gospc/internal/testkit"
)

func newStageCmd() *cobra.Command {
	var dataset, dateColumn, layout string
	var metrics []string

	cmd := &cobra.Command{
		Use:   "stage [file]",
		Short: "Load a CSV or XLSX file into the staging table",
		Long: `Replace a dataset in the staging table with the contents of a file.

The file needs a date column and one or more numeric metric columns. Empty cells
are skipped for that metric only.

Example: gospc stage body.csv --dataset body`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			if err := requireDatabase(c); err != nil {
				return err
			}

			table, err := readTable(args[0], dateColumn, layout, metrics)
			if err != nil {
				return err
			}
			written, err := c.AnalysisService.StageTable(cmd.Context(), core.DatasetKey(dataset), table)
			if err != nil {
				return err
			}
			fmt.Printf("staged %d observations of %d metric(s) into %s\n", written, len(table.Columns), dataset)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "default", "Dataset name")
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "Date column (detected when empty)")
	cmd.Flags().StringVar(&layout, "date-layout", "", "Go date layout (default day/month/year)")
	cmd.Flags().StringSliceVar(&metrics, "metric", nil, "Metric columns to stage (default all numeric columns)")
	return cmd
}

func newSolveCmd() *cobra.Command {
	var flags solveFlags
	var dataset, dateColumn, layout, out, report string
	var metrics []string
	var fromDB, persist bool

	cmd := &cobra.Command{
		Use:   "solve [file]",
		Short: "Segment metrics into trend regimes and flag out-of-control points",
		Long: `Solve one or more metrics from a file, or from the staging table with --from-db.

Without --out or --report the segment summary is printed as markdown.

Examples:
  gospc solve body.csv --metric mass_kg --time-frame w --out results.xlsx
  gospc solve --from-db --dataset body --report body.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromDB == (len(args) == 1) {
				return fmt.Errorf("pass either a file or --from-db")
			}
			opts, err := flags.options(cmd, persist)
			if err != nil {
				return err
			}

			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			var outcomes []app.MetricOutcome
			if fromDB {
				if err := requireDatabase(c); err != nil {
					return err
				}
				outcomes, err = c.AnalysisService.AnalyzeStaged(cmd.Context(), core.DatasetKey(dataset), metrics, opts)
			} else {
				table, readErr := readTable(args[0], dateColumn, layout, metrics)
				if readErr != nil {
					return readErr
				}
				outcomes, err = c.AnalysisService.AnalyzeTable(cmd.Context(), core.DatasetKey(dataset), table, metrics, opts)
			}
			if err != nil {
				return err
			}
			if err := reportFailures(outcomes); err != nil {
				return err
			}
			return writeOutputs("SPC report "+dataset, app.Succeeded(outcomes), out, report)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dataset, "dataset", "default", "Dataset name")
	cmd.Flags().StringSliceVar(&metrics, "metric", nil, "Metrics to solve (default all)")
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "Date column (detected when empty)")
	cmd.Flags().StringVar(&layout, "date-layout", "", "Go date layout (default day/month/year)")
	cmd.Flags().StringVar(&out, "out", "", "Write the working, segment and band tables to this XLSX file")
	cmd.Flags().StringVar(&report, "report", "", "Write an HTML (or .md) report to this file")
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Read the series from the staging table")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save analyses to the database")
	return cmd
}

func newRunJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-job [job.yaml]",
		Short: "Stage a file and solve its metrics as described by a YAML job",
		Long: `Run a batch analysis described in YAML:

  dataset: body
  file: data/body.csv
  metrics: [mass_kg, fat_mass_percent]
  time_frame: w
  sample_size: 20
  output: out/body.xlsx
  report: out/body.html
  persist: true

Relative paths are resolved against the job file. With a database configured the
file is staged before solving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			job, err := config.LoadJob(args[0], c.Config.Solver)
			if err != nil {
				return err
			}
			if job.Persist {
				if err := requireDatabase(c); err != nil {
					return err
				}
			}

			table, err := readTable(job.File, "", job.DateLayout, job.Metrics)
			if err != nil {
				return err
			}
			dataset := core.DatasetKey(job.Dataset)
			opts := app.AnalysisOptions{TimeFrame: &job.TimeFrame, SampleSize: job.SampleSize, Persist: job.Persist}

			var outcomes []app.MetricOutcome
			if c.DB != nil {
				if _, err := c.AnalysisService.StageTable(cmd.Context(), dataset, table); err != nil {
					return err
				}
				outcomes, err = c.AnalysisService.AnalyzeStaged(cmd.Context(), dataset, job.Metrics, opts)
			} else {
				outcomes, err = c.AnalysisService.AnalyzeTable(cmd.Context(), dataset, table, job.Metrics, opts)
			}
			if err != nil {
				return err
			}
			if err := reportFailures(outcomes); err != nil {
				return err
			}
			return writeOutputs("SPC report "+job.Dataset, app.Succeeded(outcomes), job.Output, job.Report)
		},
	}
}

func newReportCmd() *cobra.Command {
	var out, workbook string

	cmd := &cobra.Command{
		Use:   "report [analysis-id...]",
		Short: "Render saved analyses as a report or workbook",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			if err := requireDatabase(c); err != nil {
				return err
			}

			analyses := make([]*spc.Analysis, 0, len(args))
			for _, arg := range args {
				id, err := core.ParseAnalysisID(arg)
				if err != nil {
					return err
				}
				analysis, err := c.AnalysisService.GetAnalysis(cmd.Context(), id)
				if err != nil {
					return err
				}
				analyses = append(analyses, analysis)
			}
			return writeOutputs("SPC report", analyses, workbook, out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write an HTML (or .md) report to this file")
	cmd.Flags().StringVar(&workbook, "workbook", "", "Write an XLSX workbook to this file")
	return cmd
}

func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staged datasets and saved analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			if err := requireDatabase(c); err != nil {
				return err
			}

			datasets, err := c.AnalysisService.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			analyses, err := c.AnalysisService.ListAnalyses(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATASET\tMETRICS\tOBSERVATIONS\tFIRST\tLAST")
			for _, d := range datasets {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", d.Dataset, d.Metrics, d.Observations,
					core.FormatDate(d.First), core.FormatDate(d.Last))
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "ANALYSIS\tDATASET\tMETRIC\tFRAME\tROWS\tSEGMENTS\tCREATED")
			for _, a := range analyses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", a.ID, a.Dataset, a.Metric, a.TimeFrame,
					a.RowCount, a.SegmentCount, a.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum analyses to list")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the staging and analysis tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open already runs the migrations; this only reports the outcome.
			c, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())
			if err := requireDatabase(c); err != nil {
				return err
			}
			fmt.Printf("schema at version %s\n", migration.NewRunner().Version())
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var metric, out string
	var points int
	var shift, noise float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic two-regime series as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := testkit.DefaultSeriesConfig()
			cfg.Regimes[0].Points = points
			cfg.Regimes[1].Points = points
			cfg.Regimes[1].Shift = shift
			cfg.Noise = noise
			cfg.Seed = seed
			if noise > 0 {
				cfg.NoiseKind = testkit.NoiseUniform
			}

			csv := testkit.NewSeriesGenerator(cfg).CSV(metric)
			if out == "" {
				_, err := fmt.Print(csv)
				return err
			}
			return os.WriteFile(out, []byte(csv), 0o644)
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "mass_kg", "Metric column name")
	cmd.Flags().StringVar(&out, "out", "", "Output file (stdout when empty)")
	cmd.Flags().IntVar(&points, "points", 60, "Points per regime")
	cmd.Flags().Float64Var(&shift, "shift", -3, "Level shift at the second regime")
	cmd.Flags().Float64Var(&noise, "noise", 0.2, "Uniform noise amplitude")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed")
	return cmd
}
