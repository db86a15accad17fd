package runner

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ResultMarker is the key that distinguishes the one authoritative result
// object from incidental JSON-shaped log lines.
const ResultMarker = "load_ms"

var markerQuoted = `"` + ResultMarker + `"`

// ExtractResult recovers the result object from noisy stdout. Tier one scans
// whole lines from the end of the stream; tier two falls back to a
// brace-balanced scan for multi-line top-level objects. In both tiers the
// last marked candidate wins, because log lines printed earlier may be
// JSON-shaped without being the result.
func ExtractResult(stdout []byte) (map[string]any, bool) {
	if obj, ok := scanLines(stdout); ok {
		return obj, true
	}
	return scanBlocks(stdout)
}

func scanLines(stdout []byte) (map[string]any, bool) {
	lines := strings.Split(string(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !strings.Contains(line, markerQuoted) {
			continue
		}
		if obj, ok := parseMarked([]byte(line)); ok {
			return obj, true
		}
	}
	return nil, false
}

// scanBlocks collects top-level {...} spans by counting braces. Braces inside
// string literals can fool the counter; the json parse below rejects any
// candidate the miscount corrupts.
func scanBlocks(stdout []byte) (map[string]any, bool) {
	var blocks [][]byte
	depth := 0
	start := -1

	for i, c := range stdout {
		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				blocks = append(blocks, stdout[start:i+1])
				start = -1
			}
		}
	}

	for i := len(blocks) - 1; i >= 0; i-- {
		if !bytes.Contains(blocks[i], []byte(markerQuoted)) {
			continue
		}
		if obj, ok := parseMarked(blocks[i]); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseMarked(data []byte) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}
	if _, ok := obj[ResultMarker]; !ok {
		return nil, false
	}
	return obj, true
}
