package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/inferbench/bench-server/internal/types"
)

// Path is the canonical storage identity of one benchmark configuration.
// Records of the same configuration land on the same path; any differing
// required field changes it.
type Path struct {
	Dir      string
	Filename string
	FullPath string
}

// Headless chromium reports this vendor for its software renderer. It says
// nothing about the machine, so it never becomes a path token.
const softwareRendererVendor = "Google Inc."

const maxTokenLen = 20

// KnownDTypes is the quantization vocabulary recognized when parsing a path
// back into a config.
var KnownDTypes = map[string]bool{
	"fp32":  true,
	"fp16":  true,
	"q8":    true,
	"int8":  true,
	"uint8": true,
	"q4":    true,
	"q4f16": true,
	"bnb4":  true,
}

type options struct {
	env *types.EnvironmentInfo
}

type Option func(*options)

// WithEnvironment appends environment tokens to the filename. Without it the
// identity is environment-free, so the same configuration groups together
// across machines.
func WithEnvironment(env types.EnvironmentInfo) Option {
	return func(o *options) {
		o.env = &env
	}
}

// DerivePath maps a configuration to its storage path. The directory is
// task/modelId with any slashes in the model id preserved; the filename joins
// the identity fields with "_" in a fixed order, omitting absent optionals.
func DerivePath(cfg types.BenchConfig, opts ...Option) Path {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.Normalized()

	parts := []string{
		string(cfg.Platform),
		string(cfg.Mode),
		string(cfg.Device),
	}
	if cfg.DType != "" {
		parts = append(parts, cfg.DType)
	}
	parts = append(parts, fmt.Sprintf("b%d", cfg.BatchSize))
	if cfg.Platform == types.PlatformWeb && cfg.Browser != "" {
		parts = append(parts, string(cfg.Browser))
	}
	if cfg.Platform == types.PlatformWeb && cfg.Headed {
		parts = append(parts, "headed")
	}
	if o.env != nil {
		parts = append(parts, environmentTokens(cfg, *o.env)...)
	}

	dir := cfg.Task + "/" + cfg.ModelID
	filename := strings.Join(parts, "_")

	return Path{
		Dir:      dir,
		Filename: filename,
		FullPath: dir + "/" + filename + ".json",
	}
}

func environmentTokens(cfg types.BenchConfig, env types.EnvironmentInfo) []string {
	var tokens []string

	if env.CPU != "" {
		if fields := strings.Fields(env.CPU); len(fields) > 0 {
			if tok := Sanitize(fields[0]); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	if env.CPUCores > 0 {
		tokens = append(tokens, fmt.Sprintf("%dc", env.CPUCores))
	}
	if tok := MemoryToken(env.Memory.DeviceMemory); tok != "" {
		tokens = append(tokens, tok)
	}
	if env.Arch != "" {
		if tok := Sanitize(env.Arch); tok != "" {
			tokens = append(tokens, tok)
		}
	}

	// The GPU vendor only matters for browser runs that actually used the GPU.
	if cfg.Platform == types.PlatformWeb && cfg.Device == types.DeviceWebGPU &&
		env.GPUVendor != "" && env.GPUVendor != softwareRendererVendor {
		if tok := Sanitize(env.GPUVendor); tok != "" {
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

// MemoryToken renders a memory size as a path token. It accepts either an
// already-formatted size string ("16GB") or a raw GB number.
func MemoryToken(v any) string {
	switch mem := v.(type) {
	case string:
		if mem == "" {
			return ""
		}
		return Sanitize(mem)
	case float64:
		if mem <= 0 {
			return ""
		}
		return fmt.Sprintf("%.0fgb", mem)
	case int:
		if mem <= 0 {
			return ""
		}
		return fmt.Sprintf("%dgb", mem)
	default:
		return ""
	}
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^a-z0-9-]`)
)

// Sanitize normalizes a free-form string into a path token: lowercase,
// whitespace runs become a single dash, anything outside [a-z0-9-] is
// stripped, and the result is capped at 20 characters.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, "-")
	s = disallowedRe.ReplaceAllString(s, "")
	if len(s) > maxTokenLen {
		s = s[:maxTokenLen]
	}
	return s
}

var batchRe = regexp.MustCompile(`^b(\d+)$`)

// ParsePath is the best-effort inverse of DerivePath. It recovers whatever
// prefix of fields it can positively identify, consuming filename tokens in
// derivation order and stopping at the first unrecognized one. Malformed
// input yields a partial (possibly zero) config, never an error.
func ParsePath(p string) types.BenchConfig {
	var cfg types.BenchConfig

	p = strings.TrimSuffix(strings.Trim(p, "/"), ".json")
	segments := strings.Split(p, "/")

	stem := segments[len(segments)-1]
	if len(segments) > 1 {
		cfg.Task = segments[0]
	}
	if len(segments) > 2 {
		cfg.ModelID = strings.Join(segments[1:len(segments)-1], "/")
	}

	tokens := strings.Split(stem, "_")
	pos := 0

	next := func() (string, bool) {
		if pos >= len(tokens) {
			return "", false
		}
		return tokens[pos], true
	}

	if tok, ok := next(); ok {
		switch types.Platform(tok) {
		case types.PlatformNode, types.PlatformWeb:
			cfg.Platform = types.Platform(tok)
			pos++
		}
	}
	if cfg.Platform == "" {
		return cfg
	}

	if tok, ok := next(); ok {
		switch types.Mode(tok) {
		case types.ModeWarm, types.ModeCold:
			cfg.Mode = types.Mode(tok)
			pos++
		}
	}
	if cfg.Mode == "" {
		return cfg
	}

	if tok, ok := next(); ok {
		switch types.Device(tok) {
		case types.DeviceCPU, types.DeviceCUDA, types.DeviceWASM, types.DeviceWebGPU:
			cfg.Device = types.Device(tok)
			pos++
		}
	}
	if cfg.Device == "" {
		return cfg
	}

	if tok, ok := next(); ok && KnownDTypes[tok] {
		cfg.DType = tok
		pos++
	}

	if tok, ok := next(); ok {
		m := batchRe.FindStringSubmatch(tok)
		if m == nil {
			return cfg
		}
		cfg.BatchSize, _ = strconv.Atoi(m[1])
		pos++
	}

	if tok, ok := next(); ok {
		switch types.Browser(tok) {
		case types.BrowserChromium, types.BrowserChrome, types.BrowserFirefox,
			types.BrowserWebKit, types.BrowserSafari:
			cfg.Browser = types.Browser(tok)
			pos++
		}
	}

	if tok, ok := next(); ok && tok == "headed" {
		cfg.Headed = true
	}

	return cfg
}

// DisplayName is a one-line human summary of a configuration. Cosmetic only;
// two distinct configs may share a display name.
func DisplayName(cfg types.BenchConfig) string {
	cfg = cfg.Normalized()

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] (%s/%s) %s", cfg.ModelID, cfg.Task, cfg.Platform, cfg.Device, cfg.Mode)
	if cfg.DType != "" {
		b.WriteString(" " + cfg.DType)
	}
	if cfg.BatchSize != 1 {
		fmt.Fprintf(&b, " b%d", cfg.BatchSize)
	}
	if cfg.Platform == types.PlatformWeb && cfg.Headed {
		b.WriteString(" headed")
	}
	return b.String()
}
