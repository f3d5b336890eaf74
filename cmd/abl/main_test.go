package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/abl/pkg/abl/data"
	"github.com/cognicore/abl/pkg/abl/symbol"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootFlags.configPath, rootFlags.logLevel, rootFlags.metricsAddr = "", "", ""
	abduceFlags.output = ""

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestKBBuildAndQuery(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "abl.yaml", `
kb:
  max_len: 2
store:
  path: `+filepath.Join(dir, "abl.db")+`
logging:
  level: warn
`)

	out, err := execute(t, "kb", "build", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Built knowledge base: 100 entries")

	out, err = execute(t, "kb", "query", "--config", cfg, "--key", "17", "--length", "2")
	require.NoError(t, err)
	assert.Equal(t, "8 9\n9 8\n2 candidates\n", out)
}

func TestKBBuildLazy(t *testing.T) {
	out, err := execute(t, "kb", "build", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "lazy")
}

func TestAbduce(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "abl.yaml", `
reasoner:
  cost: hamming
  max_revision: 1
logging:
  level: error
`)
	input := writeFile(t, dir, "in.jsonl",
		`{"id":"a","pred":["3","4"],"y":10}`+"\n"+
			`{"id":"b","pred":["1","1"],"y":18}`+"\n")
	output := filepath.Join(dir, "out.jsonl")

	_, err := execute(t, "abduce", "--config", cfg, "--input", input, "--output", output)
	require.NoError(t, err)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	samples, err := data.ReadJSONLines(f)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, symbol.Of("6", "4"), samples[0].Abduced)
	assert.Nil(t, samples[1].Abduced)
}

func TestAbduceRequiresInput(t *testing.T) {
	_, err := execute(t, "abduce", "--input", filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestAddition(t *testing.T) {
	index := writeFile(t, t.TempDir(), "train_data.txt", "0 1 7\n2 3 7\n4 5 12\n")

	out, err := execute(t, "addition", "--index", index)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"Samples: 3", "  sum  7: 2", "  sum 12: 1"}, lines)
}
