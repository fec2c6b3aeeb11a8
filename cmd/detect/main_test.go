package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
)

func writeFiles(t *testing.T, shell string) string {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "runs.csv")
	require.NoError(t, os.WriteFile(manifest, []byte("phoenix,s3://prod/a/\nphoenix,s3://prod/b/\n"), 0o600))
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
log_level: error
pipelines:
  - name: prod2res
    kind: manifest
    limit: 1
    manifest:
      path: `+manifest+`
    dispatch:
      kind: shell
      shell: '`+shell+`'
`), 0o600))
	return cfg
}

func TestRunRequiresTarget(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(nil, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-all", "-pipeline", "x"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "exactly one of -pipeline or -all")
}

func TestRunDryRun(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeFiles(t, "exit 1"), "-pipeline", "prod2res", "-dry-run", "-limit", "0"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var reports []domain.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.True(t, reports[0].DryRun)
	assert.Len(t, reports[0].Outcomes, 2)
}

func TestRunDispatchFailureExitCode(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", writeFiles(t, "exit 1"), "-all"}, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var reports []domain.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, domain.RunStatusPartial, reports[0].Status)
	assert.Len(t, reports[0].Outcomes, 1)
}

func TestRunUnknownPipeline(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", writeFiles(t, "true"), "-pipeline", "nope"}, &stdout, &stderr))
}

func TestRunList(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"-config", writeFiles(t, "true"), "-list"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `"prod2res"`)
}
