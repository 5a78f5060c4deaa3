package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gospc/app"
	"gospc/domain/core"
	"gospc/domain/spc"
	"gospc/internal/testkit"
)

func TestSolveFlagsOptions(t *testing.T) {
	var flags solveFlags
	cmd := &cobra.Command{Use: "solve"}
	flags.register(cmd)

	opts, err := flags.options(cmd, true)
	require.NoError(t, err)
	assert.Nil(t, opts.TimeFrame, "unset flag keeps the configured frame")
	assert.True(t, opts.Persist)

	require.NoError(t, cmd.Flags().Set("time-frame", "w"))
	require.NoError(t, cmd.Flags().Set("sample-size", "12"))
	opts, err = flags.options(cmd, false)
	require.NoError(t, err)
	require.NotNil(t, opts.TimeFrame)
	assert.Equal(t, spc.Weekly, *opts.TimeFrame)
	assert.Equal(t, 12, opts.SampleSize)

	require.NoError(t, cmd.Flags().Set("time-frame", "fortnight"))
	_, err = flags.options(cmd, false)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestReadTableAndWriteReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "body.csv")
	require.NoError(t, os.WriteFile(input, []byte(testkit.NewSeriesGenerator(testkit.DefaultSeriesConfig()).CSV("mass_kg")), 0o644))

	table, err := readTable(input, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 120, table.Len())
	assert.Equal(t, []string{"mass_kg"}, table.Metrics())

	analysis := &spc.Analysis{ID: core.NewAnalysisID(), Metric: "mass_kg", Result: &spc.Result{}}

	html := filepath.Join(dir, "out", "report.html")
	require.NoError(t, writeReport(html, "Body", []*spc.Analysis{analysis}))
	content, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<title>Body</title>")

	md := filepath.Join(dir, "report.md")
	require.NoError(t, writeReport(md, "Body", []*spc.Analysis{analysis}))
	content, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# Body"))
}

func TestReportFailures(t *testing.T) {
	ok := app.MetricOutcome{Metric: "mass_kg", Analysis: &spc.Analysis{}}
	bad := app.MetricOutcome{Metric: "height_cm", Err: errors.New("boom")}

	assert.NoError(t, reportFailures([]app.MetricOutcome{ok, bad}))
	assert.Error(t, reportFailures([]app.MetricOutcome{bad}))
	assert.NoError(t, reportFailures(nil))
}
