package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"gospc/domain/spc"
	"gospc/internal/errors"
)

// Job describes a batch analysis: which file to stage, which metrics to solve and
// where to write the workbook.
type Job struct {
	Dataset    string        `yaml:"dataset"`
	File       string        `yaml:"file"`
	Metrics    []string      `yaml:"metrics"`
	TimeFrame  spc.TimeFrame `yaml:"time_frame"`
	SampleSize int           `yaml:"sample_size"`
	DateLayout string        `yaml:"date_layout"`
	Output     string        `yaml:"output"`
	Report     string        `yaml:"report"`
	Persist    bool          `yaml:"persist"`
}

// LoadJob reads a YAML job file. Relative paths inside the job are resolved against
// the job file's directory; unset parameters fall back to defaults.
func LoadJob(path string, defaults SolverConfig) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read job file %s", path)
	}

	job := &Job{}
	if err := yaml.Unmarshal(raw, job); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("parse job %s: %w", path, err))
	}

	if job.SampleSize == 0 {
		job.SampleSize = defaults.SampleSize
	}
	if job.TimeFrame == spc.Native {
		job.TimeFrame = defaults.TimeFrame
	}
	if job.DateLayout == "" {
		job.DateLayout = defaults.DateLayout
	}

	dir := filepath.Dir(path)
	job.File = resolve(dir, job.File)
	job.Output = resolve(dir, job.Output)
	job.Report = resolve(dir, job.Report)

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks the fields a job cannot run without
func (j *Job) Validate() error {
	if j.Dataset == "" {
		return errors.ConfigInvalid("job dataset is required")
	}
	if j.File == "" {
		return errors.ConfigInvalid("job file is required")
	}
	if j.SampleSize <= 0 {
		return errors.ConfigInvalid("job sample_size must be positive")
	}
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
