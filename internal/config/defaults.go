package config

import (
	"errors"
	"time"
)

const (
	DefaultBenchHome       = "~/.inferbench"
	DefaultJobTimeout      = 10 * time.Minute
	DefaultDatasetEndpoint = "https://huggingface.co"
)

var (
	DefaultJobsTopic  = "inferbench/jobs"
	DefaultJobsPrefix = DefaultJobsTopic + ":"
)

var (
	ErrBenchHomeNotSet       = errors.New("bench home directory is not set")
	ErrBenchHomeExpandFailed = errors.New("failed to expand bench home directory")
)
