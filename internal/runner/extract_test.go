package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractResultSingleLine(t *testing.T) {
	stdout := []byte(`starting up
loading model...
{"load_ms": [120.5], "first_infer_ms": [30.1], "subsequent_infer_ms": [[10.0]]}
done
`)

	obj, ok := ExtractResult(stdout)
	require.True(t, ok)
	assert.Contains(t, obj, "load_ms")
	assert.Contains(t, obj, "first_infer_ms")
}

func TestExtractResultLastMarkedLineWins(t *testing.T) {
	stdout := []byte(`{"progress": 50}
{"load_ms": [1.0]}
{"load_ms": [2.0]}
`)

	obj, ok := ExtractResult(stdout)
	require.True(t, ok)

	raw := obj["load_ms"].([]any)
	assert.Equal(t, 2.0, raw[0])
}

func TestExtractResultIgnoresUnmarkedJSON(t *testing.T) {
	stdout := []byte(`{"status": "ok"}
{"done": true}
`)

	_, ok := ExtractResult(stdout)
	assert.False(t, ok)
}

func TestExtractResultMultiline(t *testing.T) {
	stdout := []byte(`log: warming up
{
  "load_ms": [100.2],
  "first_infer_ms": [20.0],
  "subsequent_infer_ms": [[9.8, 9.9]]
}
log: shutting down
`)

	obj, ok := ExtractResult(stdout)
	require.True(t, ok)
	assert.Contains(t, obj, "load_ms")
}

func TestExtractResultMultilineLastWins(t *testing.T) {
	stdout := []byte(`{
  "load_ms": [1.0]
}
noise
{
  "load_ms": [2.0]
}
`)

	obj, ok := ExtractResult(stdout)
	require.True(t, ok)

	raw := obj["load_ms"].([]any)
	assert.Equal(t, 2.0, raw[0])
}

func TestExtractResultSkipsInvalidCandidates(t *testing.T) {
	// The last marked line does not parse; the earlier valid one is used.
	stdout := []byte(`{"load_ms": [3.0]}
{"load_ms": [broken
`)

	obj, ok := ExtractResult(stdout)
	require.True(t, ok)

	raw := obj["load_ms"].([]any)
	assert.Equal(t, 3.0, raw[0])
}

func TestExtractResultMarkerMustBeAKey(t *testing.T) {
	// The marker appearing as a value is not enough.
	stdout := []byte(`{"metric": "load_ms"}` + "\n")

	_, ok := ExtractResult(stdout)
	assert.False(t, ok)
}

func TestExtractResultEmpty(t *testing.T) {
	_, ok := ExtractResult(nil)
	assert.False(t, ok)
}
