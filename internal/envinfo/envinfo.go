package envinfo

import (
	"bufio"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/inferbench/bench-server/internal/types"
)

const (
	procCPUInfo = "/proc/cpuinfo"
	procMemInfo = "/proc/meminfo"
)

// Probe gathers best-effort facts about the host machine. Sources that cannot
// be read leave their fields zero; callers treat every field as optional.
func Probe() types.EnvironmentInfo {
	info := types.EnvironmentInfo{
		CPUCores: runtime.NumCPU(),
		Arch:     archName(runtime.GOARCH),
	}

	info.CPU = cpuModel(procCPUInfo)
	info.Memory.DeviceMemory = memoryGB(procMemInfo)

	return info
}

// archName maps Go's GOARCH to the arch vocabulary the leaderboard uses.
func archName(goarch string) string {
	switch goarch {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	default:
		return goarch
	}
}

func cpuModel(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "model name") {
			if _, value, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(value)
			}
		}
	}

	return ""
}

func memoryGB(path string) float64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}

		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0
		}

		return math.Round(kb/1024/1024*10) / 10
	}

	return 0
}
