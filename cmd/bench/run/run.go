package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inferbench/bench-server/internal/app"
	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/server"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bench server",
	RunE:  runApp,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", 8881, "Port to run the server on")
	flags.String("host", "localhost", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration")
	flags.Bool("disable-auth", false, "Disable authentication when receiving requests")
	flags.String("filesystem-type", "local", "Filesystem type: 'local' or 's3'")
	flags.String("public-dir", "", "Path where static files should be served from. Relative paths are relative to the current working directory, not the location of the bench executable.")
	flags.String("results-dir", "", "Directory benchmark result files are written to")

	flags.String("db-dsn", "", "Database DSN (Connection URL or Path)")
	flags.String("pulsar-url", "", "URL of the pulsar broker. Example: pulsar+ssl://my-cluster.streamnative.cloud:6651")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region-name", "", "S3 region name")
	flags.String("s3-bucket-name", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-vanity-url", "", "Public URL for S3 files")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	viper.BindPFlags(flags)
	bindFlags(flags)
	bindEnvs()
}

// bindFlags maps hyphenated flag names onto the nested config keys viper
// unmarshals from.
func bindFlags(flags *pflag.FlagSet) {
	viper.BindPFlag("disable_auth", flags.Lookup("disable-auth"))
	viper.BindPFlag("filesystem_type", flags.Lookup("filesystem-type"))
	viper.BindPFlag("public_dir", flags.Lookup("public-dir"))
	viper.BindPFlag("results_dir", flags.Lookup("results-dir"))

	viper.BindPFlag("db.dsn", flags.Lookup("db-dsn"))
	viper.BindPFlag("pulsar.url", flags.Lookup("pulsar-url"))

	viper.BindPFlag("s3.access_key", flags.Lookup("s3-access-key"))
	viper.BindPFlag("s3.secret_key", flags.Lookup("s3-secret-key"))
	viper.BindPFlag("s3.region_name", flags.Lookup("s3-region-name"))
	viper.BindPFlag("s3.bucket_name", flags.Lookup("s3-bucket-name"))
	viper.BindPFlag("s3.folder", flags.Lookup("s3-folder"))
	viper.BindPFlag("s3.vanity_url", flags.Lookup("s3-vanity-url"))
	viper.BindPFlag("s3.endpoint_url", flags.Lookup("s3-endpoint-url"))
}

func bindEnvs() {
	// Core settings (will use BENCH_ prefix)
	// Example: BENCH_PORT
	viper.BindEnv("port")
	viper.BindEnv("host")
	viper.BindEnv("environment")
	viper.BindEnv("disable_auth")
	viper.BindEnv("filesystem_type")
	viper.BindEnv("public_dir")
	viper.BindEnv("results_dir")
	viper.BindEnv("gpu_vendor")

	viper.BindEnv("db.driver")
	viper.BindEnv("db.dsn")
	viper.BindEnv("pulsar.url")

	// Runner bindings. Example: BENCH_RUNNER_NODE_SCRIPT
	viper.BindEnv("runner.node_command")
	viper.BindEnv("runner.node_script")
	viper.BindEnv("runner.web_script")
	viper.BindEnv("runner.work_dir")
	viper.BindEnv("runner.job_timeout")

	// S3 environment bindings (will automatically use BENCH_ prefix)
	// example: BENCH_S3_ACCESS_KEY
	viper.BindEnv("s3.access_key")
	viper.BindEnv("s3.secret_key")
	viper.BindEnv("s3.region_name")
	viper.BindEnv("s3.bucket_name")
	viper.BindEnv("s3.folder")
	viper.BindEnv("s3.vanity_url")
	viper.BindEnv("s3.endpoint_url")

	// Dataset push settings
	viper.BindEnv("dataset.repo")
	viper.BindEnv("dataset.branch")
	viper.BindEnv("dataset.endpoint")
	viper.BindEnv("dataset.token")

	// External API tokens (does NOT use BENCH_ prefix)
	viper.BindEnv("hf_token", "HF_TOKEN")
}

func runApp(_ *cobra.Command, _ []string) error {
	app, err := createNewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	srv, errc, err := runServer(app)
	if err != nil {
		return err
	}

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-signalc:
		app.Logger.Info("shutting down")
		if err := srv.Stop(app.Context()); err != nil {
			app.Logger.Warn("server shutdown failed", zap.Error(err))
		}
		return nil
	}
}

func createNewApp() (*app.App, error) {
	return app.NewApp(
		config.MustGetConfig(),
		app.WithMQ(),
		app.WithDBInitialization(),
		app.WithStore(),
		app.WithExecutor(),
		app.WithUploader(),
		app.WithQueue(),
	)
}

func runServer(a *app.App) (*server.Server, <-chan error, error) {
	srv, err := server.NewServer(a.Config())
	if err != nil {
		return nil, nil, err
	}

	// Setup the server routes
	srv.SetupRoutes(a)

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("server started",
			zap.String("host", a.Config().Host),
			zap.Int("port", a.Config().Port),
		)
		errc <- srv.Start()
	}()

	return srv, errc, nil
}
