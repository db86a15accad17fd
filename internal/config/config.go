package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/inferbench/bench-server/internal/templates"
	"github.com/inferbench/bench-server/internal/utils/pathutil"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	BenchHome   string `mapstructure:"bench_home"`
	ResultsDir  string `mapstructure:"results_dir"`
	PublicDir   string `mapstructure:"public_dir"`
	DisableAuth bool   `mapstructure:"disable_auth"`
	Filesystem  string `mapstructure:"filesystem_type"`
	GPUVendor   string `mapstructure:"gpu_vendor"`
	HFToken     string `mapstructure:"hf_token"`

	Runner  RunnerConfig   `mapstructure:"runner"`
	DB      *DBConfig      `mapstructure:"db"`
	S3      *S3Config      `mapstructure:"s3"`
	Pulsar  *PulsarConfig  `mapstructure:"pulsar"`
	Dataset *DatasetConfig `mapstructure:"dataset"`
}

// RunnerConfig points at the measurement scripts and bounds each run.
type RunnerConfig struct {
	NodeCommand string        `mapstructure:"node_command"`
	NodeScript  string        `mapstructure:"node_script"`
	WebScript   string        `mapstructure:"web_script"`
	WorkDir     string        `mapstructure:"work_dir"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	VanityUrl   string `mapstructure:"vanity_url"`
}

type PulsarConfig struct {
	URL string `mapstructure:"url"`
}

// DatasetConfig describes the HuggingFace dataset repo completed results are
// pushed to.
type DatasetConfig struct {
	Repo     string `mapstructure:"repo"`
	Branch   string `mapstructure:"branch"`
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

var config *Config

// LoadEnvAndConfigFiles resolves the bench home directory, makes sure it
// exists with a default .env and config.yaml, loads both into viper, and
// unmarshals the final Config. Called once from the root command.
func LoadEnvAndConfigFiles() error {
	benchHome, err := getBenchHome()
	if err != nil {
		return err
	}

	if err := createBenchHomeDirs(benchHome); err != nil {
		return err
	}

	viper.Set("bench_home", benchHome)

	envFile := filepath.Join(benchHome, ".env")
	if override := viper.GetString("env_file"); override != "" {
		envFile = override
	}
	configFile := filepath.Join(benchHome, "config.yaml")
	if override := viper.GetString("config_file"); override != "" {
		configFile = override
	}

	if _, err := os.Stat(envFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat .env file: %w", err)
		}
		if err := templates.WriteEnv(envFile); err != nil {
			return fmt.Errorf("failed to create .env file: %w", err)
		}
	}

	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	if _, err := os.Stat(configFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config.yaml file: %w", err)
		}
		if err := templates.WriteConfig(configFile); err != nil {
			return fmt.Errorf("failed to create config.yaml file: %w", err)
		}
	}

	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	return LoadConfig()
}

// LoadConfig unmarshals viper's merged state and fills derived defaults.
func LoadConfig() error {
	config = &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if config.ResultsDir == "" && config.BenchHome != "" {
		config.ResultsDir = filepath.Join(config.BenchHome, "results")
	}
	if config.Runner.NodeCommand == "" {
		config.Runner.NodeCommand = "node"
	}
	if config.Runner.JobTimeout <= 0 {
		config.Runner.JobTimeout = DefaultJobTimeout
	}
	if config.Dataset != nil {
		if config.Dataset.Branch == "" {
			config.Dataset.Branch = "main"
		}
		if config.Dataset.Endpoint == "" {
			config.Dataset.Endpoint = DefaultDatasetEndpoint
		}
		if config.Dataset.Token == "" {
			config.Dataset.Token = config.HFToken
		}
	}

	return nil
}

func IsLoaded() bool {
	return config != nil
}

func GetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}
	return config
}

func MustGetConfig() *Config {
	return GetConfig()
}

// Returns the bench home directory path, trying in order:
// 1. The `bench_home` flag from viper.
// 2. The `BENCH_HOME` environment variable.
// 3. The default home directory.
func getBenchHome() (string, error) {
	benchHome := viper.GetString("bench_home")
	if benchHome == "" {
		benchHome = os.Getenv("BENCH_HOME")
		if benchHome == "" {
			benchHome = DefaultBenchHome
		}
	}

	benchHome, err := pathutil.ExpandPath(benchHome)
	if err != nil {
		return "", ErrBenchHomeExpandFailed
	}

	return benchHome, nil
}

func createBenchHomeDirs(benchHome string) error {
	if benchHome == "" {
		return ErrBenchHomeNotSet
	}

	if err := os.MkdirAll(benchHome, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create bench home directory: %w", err)
	}

	for _, subdir := range []string{"results", "data"} {
		if err := os.MkdirAll(filepath.Join(benchHome, subdir), os.ModePerm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", subdir, err)
		}
	}

	return nil
}
