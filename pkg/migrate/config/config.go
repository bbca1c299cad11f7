package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/baderkha/table-transfer/pkg/migrate/config/storecfg"
	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// TablePair : copy everything in Source into Destination
type TablePair struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
}

// Config : configuration for the job
type Config[S any, T any] struct {
	MaxConcurrency  int         `json:"max_concurrency" yaml:"max_concurrency"`
	BatchRecordSize int         `json:"max_batch_record_size" yaml:"max_batch_record_size"`
	MaxRetry        int         `json:"max_retry" yaml:"max_retry"`
	StateDir        string      `json:"state_dir" yaml:"state_dir"`
	SourceConfig    S           `json:"source" yaml:"source"`
	Target          T           `json:"target" yaml:"target"`
	Tables          []TablePair `json:"tables" yaml:"tables"`
}

// Job : the only instantiation the cli runs
type Job = Config[storecfg.Store, storecfg.Store]

// Decode : parses a job document, yaml when ext is .yaml or .yml, json otherwise
func Decode[S any, T any](b []byte, ext string) (*Config[S, T], error) {
	var cfg Config[S, T]
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &cfg, nil
}

// LoadJob : reads, defaults and validates a job file
func LoadJob(fs afero.Fs, path string) (*Job, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	job, err := Decode[storecfg.Store, storecfg.Store](b, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	job.SourceConfig.ApplyEnv()
	job.Target.ApplyEnv()
	if err := Validate(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate : reports every problem at once
func Validate(job *Job) error {
	var errs *multierror.Error
	if err := job.SourceConfig.Validate("source"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := job.Target.Validate("target"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if job.BatchRecordSize < 0 {
		errs = multierror.Append(errs, errors.New("max_batch_record_size cannot be negative"))
	}
	if job.MaxRetry < 0 {
		errs = multierror.Append(errs, errors.New("max_retry cannot be negative"))
	}
	if len(job.Tables) == 0 {
		errs = multierror.Append(errs, errors.New("at least one table pair is required"))
	}
	for i, p := range job.Tables {
		if p.Source == "" || p.Destination == "" {
			errs = multierror.Append(errs, fmt.Errorf("tables[%d] needs both source and destination", i))
		}
	}
	return errs.ErrorOrNil()
}
