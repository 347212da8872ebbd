package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/venueflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "venueflow version "+venueflow.Version+"\n", out)
}

func TestApplyThenInspect(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "venues.db")
	configPath := filepath.Join(dir, "venueflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("store:\n  backend: sqlite\n  path: "+db+"\nmetrics: false\n"), 0o644))

	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`
forms:
  - id: form-1
    venue_id: Conf/2025
    number: 1
    content:
      title: Conference 2025
events:
  - stage_type: Submission_Stage
    request_form_id: form-1
    sequence: 1
    content:
      due_date: "2025-03-01 23:59"
`), 0o644))

	out, err := run(t, "validate", "--config", configPath, batch)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Submission_Stage: applied")

	out, err = run(t, "apply", "--config", configPath, batch)
	require.NoError(t, err, out)

	out, err = run(t, "definitions", "--config", configPath, "--graph", "Conf/2025/-/")
	require.NoError(t, err, out)
	assert.Contains(t, out, "graph LR")
	assert.Contains(t, out, "Conf/2025/-/Request1/Submission")

	out, err = run(t, "activity", "--config", configPath, "form-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Submission stage applied")
}
