package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inferbench/bench-server/internal/types"
)

func minimalConfig() types.BenchConfig {
	return types.BenchConfig{
		Task:      "feature-extraction",
		ModelID:   "Xenova/all-MiniLM-L6-v2",
		Platform:  types.PlatformNode,
		Mode:      types.ModeWarm,
		Repeats:   3,
		BatchSize: 1,
	}
}

func TestDerivePathDefaults(t *testing.T) {
	p := DerivePath(minimalConfig())

	assert.Equal(t, "feature-extraction/Xenova/all-MiniLM-L6-v2", p.Dir)
	assert.Equal(t, "node_warm_cpu_b1", p.Filename)
	assert.Equal(t, "feature-extraction/Xenova/all-MiniLM-L6-v2/node_warm_cpu_b1.json", p.FullPath)
}

func TestDerivePathIsDeterministic(t *testing.T) {
	a := DerivePath(minimalConfig())
	b := DerivePath(minimalConfig())
	assert.Equal(t, a, b)
}

func TestDerivePathFieldOrder(t *testing.T) {
	cfg := types.BenchConfig{
		Task:      "text-classification",
		ModelID:   "Xenova/distilbert-base-uncased",
		Platform:  types.PlatformWeb,
		Mode:      types.ModeCold,
		Repeats:   5,
		BatchSize: 4,
		DType:     "q8",
		Device:    types.DeviceWebGPU,
		Browser:   types.BrowserFirefox,
		Headed:    true,
	}

	p := DerivePath(cfg)
	assert.Equal(t, "web_cold_webgpu_q8_b4_firefox_headed", p.Filename)
}

func TestDerivePathDTypeChangesIdentity(t *testing.T) {
	plain := DerivePath(minimalConfig())

	withDType := minimalConfig()
	withDType.DType = "fp16"

	assert.NotEqual(t, plain.Filename, DerivePath(withDType).Filename)
}

func TestDerivePathWebDeviceDefault(t *testing.T) {
	cfg := minimalConfig()
	cfg.Platform = types.PlatformWeb

	assert.Equal(t, "web_warm_wasm_b1", DerivePath(cfg).Filename)
}

func TestDerivePathBrowserOnlyForWeb(t *testing.T) {
	cfg := minimalConfig()
	cfg.Browser = types.BrowserChromium
	cfg.Headed = true

	// A node run never grows browser or headed tokens.
	assert.Equal(t, "node_warm_cpu_b1", DerivePath(cfg).Filename)
}

func TestDerivePathEnvironmentOptIn(t *testing.T) {
	env := types.EnvironmentInfo{
		CPU:      "Intel(R) Core(TM) i7-9750H",
		CPUCores: 12,
		Memory:   types.MemoryInfo{DeviceMemory: 16},
		Arch:     "x64",
	}

	plain := DerivePath(minimalConfig())
	assert.Equal(t, "node_warm_cpu_b1", plain.Filename)

	qualified := DerivePath(minimalConfig(), WithEnvironment(env))
	assert.Equal(t, "node_warm_cpu_b1_intelr_12c_16gb_x64", qualified.Filename)
}

func TestDerivePathGPUVendorToken(t *testing.T) {
	base := types.BenchConfig{
		Task:      "feature-extraction",
		ModelID:   "Xenova/all-MiniLM-L6-v2",
		Platform:  types.PlatformWeb,
		Mode:      types.ModeWarm,
		BatchSize: 1,
		Device:    types.DeviceWebGPU,
	}

	env := types.EnvironmentInfo{GPUVendor: "NVIDIA Corporation"}
	p := DerivePath(base, WithEnvironment(env))
	assert.Equal(t, "web_warm_webgpu_b1_nvidia-corporation", p.Filename)

	// The software renderer vendor is noise, not identity.
	swEnv := types.EnvironmentInfo{GPUVendor: "Google Inc."}
	assert.Equal(t, "web_warm_webgpu_b1", DerivePath(base, WithEnvironment(swEnv)).Filename)

	// Vendor is only meaningful for webgpu runs.
	wasm := base
	wasm.Device = types.DeviceWASM
	assert.Equal(t, "web_warm_wasm_b1", DerivePath(wasm, WithEnvironment(env)).Filename)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Intel(R) Core(TM)", "intelr-coretm"},
		{"AMD Ryzen 9   5950X", "amd-ryzen-9-5950x"},
		{"x64", "x64"},
		{"NVIDIA Corporation", "nvidia-corporation"},
		{"Apple M2 Pro (10 core) extra long name", "apple-m2-pro-10-core"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, Sanitize(tc.in), "input %q", tc.in)
	}
}

func TestMemoryToken(t *testing.T) {
	assert.Equal(t, "16gb", MemoryToken(16.0))
	assert.Equal(t, "32gb", MemoryToken(31.8))
	assert.Equal(t, "16gb", MemoryToken("16GB"))
	assert.Equal(t, "8gb", MemoryToken(8))
	assert.Equal(t, "", MemoryToken(0.0))
	assert.Equal(t, "", MemoryToken(""))
	assert.Equal(t, "", MemoryToken(nil))
}

func TestParsePathRoundTrip(t *testing.T) {
	cfg := types.BenchConfig{
		Task:      "text-classification",
		ModelID:   "Xenova/distilbert-base-uncased",
		Platform:  types.PlatformWeb,
		Mode:      types.ModeCold,
		BatchSize: 4,
		DType:     "q8",
		Device:    types.DeviceWebGPU,
		Browser:   types.BrowserFirefox,
		Headed:    true,
	}

	parsed := ParsePath(DerivePath(cfg).FullPath)

	assert.Equal(t, cfg.Task, parsed.Task)
	assert.Equal(t, cfg.ModelID, parsed.ModelID)
	assert.Equal(t, cfg.Platform, parsed.Platform)
	assert.Equal(t, cfg.Mode, parsed.Mode)
	assert.Equal(t, cfg.Device, parsed.Device)
	assert.Equal(t, cfg.DType, parsed.DType)
	assert.Equal(t, cfg.BatchSize, parsed.BatchSize)
	assert.Equal(t, cfg.Browser, parsed.Browser)
	assert.True(t, parsed.Headed)
}

func TestParsePathStopsAtUnknownToken(t *testing.T) {
	parsed := ParsePath("feature-extraction/Xenova/all-MiniLM-L6-v2/node_warm_cpu_b1_intelr_12c.json")

	assert.Equal(t, types.PlatformNode, parsed.Platform)
	assert.Equal(t, types.ModeWarm, parsed.Mode)
	assert.Equal(t, types.DeviceCPU, parsed.Device)
	assert.Equal(t, 1, parsed.BatchSize)
	assert.Empty(t, parsed.Browser)
	assert.False(t, parsed.Headed)
}

func TestParsePathMalformed(t *testing.T) {
	// Garbage never panics, it just yields an empty config.
	parsed := ParsePath("what_is_this")
	assert.Empty(t, parsed.Platform)

	parsed = ParsePath("")
	assert.Empty(t, parsed.Platform)

	// A recognizable prefix is kept even when the rest is junk.
	parsed = ParsePath("task/model/web_cold_junk")
	assert.Equal(t, types.PlatformWeb, parsed.Platform)
	assert.Equal(t, types.ModeCold, parsed.Mode)
	assert.Empty(t, parsed.Device)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t,
		"Xenova/all-MiniLM-L6-v2 [feature-extraction] (node/cpu) warm",
		DisplayName(minimalConfig()))

	cfg := types.BenchConfig{
		Task:      "text-classification",
		ModelID:   "Xenova/distilbert-base-uncased",
		Platform:  types.PlatformWeb,
		Mode:      types.ModeCold,
		BatchSize: 8,
		DType:     "q8",
		Device:    types.DeviceWebGPU,
		Headed:    true,
	}
	assert.Equal(t,
		"Xenova/distilbert-base-uncased [text-classification] (web/webgpu) cold q8 b8 headed",
		DisplayName(cfg))
}
