package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// Sample dataset shipped with the repository.
var (
	sampleLayers    = filepath.Join("..", "..", "data", "sample", "layers.json")
	sampleScans     = filepath.Join("..", "..", "data", "sample", "scans.json")
	sampleNormative = filepath.Join("..", "..", "data", "sample", "normative.yaml")
)

// runCmd executes a fresh command tree with args and returns stdout and
// the error from Execute. Logs go to a discarded buffer.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const twoLayers = `{
  "software": "test",
  "quality_score": 0.9,
  "layers": [
    {"name": "NFL", "thickness": 23.4},
    {"name": "RPE", "thickness": 15.3}
  ]
}`

const twoLayerNorms = `layers:
  - {name: NFL, mean_um: 25, std_um: 3}
  - {name: RPE, mean_um: 16, std_um: 2}
`
