package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferbench/bench-server/internal/identity"
	"github.com/inferbench/bench-server/internal/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit one benchmark to a running server",
	RunE:  runSubmit,
}

func init() {
	flags := submitCmd.Flags()

	flags.String("server", "http://localhost:8881", "Base URL of the bench server")
	flags.String("api-key", "", "API key sent with requests")
	flags.String("task", "", "Benchmark task, e.g. feature-extraction")
	flags.String("model", "", "Model id, e.g. Xenova/all-MiniLM-L6-v2")
	flags.String("platform", "node", "Runtime platform: node or web")
	flags.String("mode", "warm", "Cache mode: warm or cold")
	flags.String("device", "", "Execution device (defaults per platform)")
	flags.String("dtype", "", "Quantization dtype, e.g. q8")
	flags.String("browser", "", "Browser for web runs")
	flags.Bool("headed", false, "Run the browser headed")
	flags.Int("batch-size", 1, "Batch size")
	flags.Int("repeats", 3, "Number of samples to collect")
	flags.Bool("wait", false, "Block until the job finishes")

	submitCmd.MarkFlagRequired("task")
	submitCmd.MarkFlagRequired("model")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	task, _ := flags.GetString("task")
	model, _ := flags.GetString("model")
	platform, _ := flags.GetString("platform")
	mode, _ := flags.GetString("mode")
	device, _ := flags.GetString("device")
	dtype, _ := flags.GetString("dtype")
	browser, _ := flags.GetString("browser")
	headed, _ := flags.GetBool("headed")
	batchSize, _ := flags.GetInt("batch-size")
	repeats, _ := flags.GetInt("repeats")

	cfg := types.BenchConfig{
		Task:      task,
		ModelID:   model,
		Platform:  types.Platform(platform),
		Mode:      types.Mode(mode),
		Device:    types.Device(device),
		DType:     dtype,
		Browser:   types.Browser(browser),
		Headed:    headed,
		BatchSize: batchSize,
		Repeats:   repeats,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	base, _ := flags.GetString("server")
	apiKey, _ := flags.GetString("api-key")
	client := newBenchClient(base, apiKey)

	job, err := client.Submit(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	path := identity.DerivePath(job.Config)
	fmt.Printf("submitted %s\n", identity.DisplayName(job.Config))
	fmt.Printf("  job:  %s\n", job.ID)
	fmt.Printf("  path: %s\n", path.FullPath)

	wait, _ := flags.GetBool("wait")
	if !wait {
		return nil
	}

	job, err = client.Wait(cmd.Context(), job.ID, time.Second)
	if err != nil {
		return err
	}

	if job.Status == types.JobStatusFailed {
		return fmt.Errorf("benchmark failed: %s", job.Error)
	}

	duration := "unknown"
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()
	}
	fmt.Printf("completed in %s\n", duration)

	return nil
}
