package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/inferbench/bench-server/internal/types"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Submit the cross product of benchmark configs to a running server",
	RunE:  runSweep,
}

func init() {
	flags := sweepCmd.Flags()

	flags.String("server", "http://localhost:8881", "Base URL of the bench server")
	flags.String("api-key", "", "API key sent with requests")
	flags.String("task", "", "Benchmark task, e.g. feature-extraction")
	flags.StringSlice("models", nil, "Model ids to benchmark")
	flags.StringSlice("platforms", []string{"node"}, "Runtime platforms")
	flags.StringSlice("modes", []string{"warm"}, "Cache modes")
	flags.StringSlice("devices", nil, "Execution devices (empty uses the per-platform default)")
	flags.StringSlice("dtypes", nil, "Quantization dtypes")
	flags.StringSlice("browsers", nil, "Browsers for web runs")
	flags.IntSlice("batch-sizes", []int{1}, "Batch sizes")
	flags.Int("repeats", 3, "Number of samples per benchmark")
	flags.Bool("headed", false, "Run browsers headed")

	sweepCmd.MarkFlagRequired("task")
	sweepCmd.MarkFlagRequired("models")
}

type sweepParams struct {
	Task       string
	Models     []string
	Platforms  []string
	Modes      []string
	Devices    []string
	DTypes     []string
	Browsers   []string
	BatchSizes []int
	Repeats    int
	Headed     bool
}

// expandSweep builds the cross product, skipping device/platform pairs that
// cannot run (cuda in a browser, wasm under node).
func expandSweep(p sweepParams) []types.BenchConfig {
	orBlank := func(values []string) []string {
		if len(values) == 0 {
			return []string{""}
		}
		return values
	}

	batchSizes := p.BatchSizes
	if len(batchSizes) == 0 {
		batchSizes = []int{1}
	}

	var configs []types.BenchConfig
	for _, model := range p.Models {
		for _, platform := range orBlank(p.Platforms) {
			browsers := []string{""}
			if types.Platform(platform) == types.PlatformWeb {
				browsers = orBlank(p.Browsers)
			}

			for _, mode := range orBlank(p.Modes) {
				for _, device := range orBlank(p.Devices) {
					if !deviceAllowed(types.Platform(platform), types.Device(device)) {
						continue
					}

					for _, dtype := range orBlank(p.DTypes) {
						for _, browser := range browsers {
							for _, batch := range batchSizes {
								configs = append(configs, types.BenchConfig{
									Task:      p.Task,
									ModelID:   model,
									Platform:  types.Platform(platform),
									Mode:      types.Mode(mode),
									Device:    types.Device(device),
									DType:     dtype,
									Browser:   types.Browser(browser),
									Headed:    p.Headed && types.Platform(platform) == types.PlatformWeb,
									BatchSize: batch,
									Repeats:   p.Repeats,
								})
							}
						}
					}
				}
			}
		}
	}

	return configs
}

func deviceAllowed(platform types.Platform, device types.Device) bool {
	switch device {
	case "":
		return true
	case types.DeviceCPU, types.DeviceCUDA:
		return platform == types.PlatformNode
	case types.DeviceWASM, types.DeviceWebGPU:
		return platform == types.PlatformWeb
	default:
		return false
	}
}

func runSweep(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	params := sweepParams{}
	params.Task, _ = flags.GetString("task")
	params.Models, _ = flags.GetStringSlice("models")
	params.Platforms, _ = flags.GetStringSlice("platforms")
	params.Modes, _ = flags.GetStringSlice("modes")
	params.Devices, _ = flags.GetStringSlice("devices")
	params.DTypes, _ = flags.GetStringSlice("dtypes")
	params.Browsers, _ = flags.GetStringSlice("browsers")
	params.BatchSizes, _ = flags.GetIntSlice("batch-sizes")
	params.Repeats, _ = flags.GetInt("repeats")
	params.Headed, _ = flags.GetBool("headed")

	configs := expandSweep(params)
	if len(configs) == 0 {
		return fmt.Errorf("sweep expands to no runnable configs")
	}

	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	base, _ := flags.GetString("server")
	apiKey, _ := flags.GetString("api-key")
	client := newBenchClient(base, apiKey)

	// Submit everything up front; the server runs one job at a time in
	// submission order.
	ids := make([]string, 0, len(configs))
	for _, cfg := range configs {
		job, err := client.Submit(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		ids = append(ids, job.ID)
	}

	progress := mpb.New(
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)
	bar := progress.AddBar(int64(len(ids)),
		mpb.PrependDecorators(
			decor.Name("benchmarks", decor.WC{W: 12, C: decor.DidentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	var failed int
	for _, id := range ids {
		job, err := client.Wait(cmd.Context(), id, time.Second)
		if err != nil {
			return err
		}
		if job.Status == types.JobStatusFailed {
			failed++
		}
		bar.Increment()
	}
	progress.Wait()

	fmt.Printf("sweep finished: %d completed, %d failed\n", len(ids)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d benchmarks failed", failed, len(ids))
	}

	return nil
}
