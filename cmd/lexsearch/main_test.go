package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/lexsearch/internal/models"
)

const testConfig = `storage:
  database_path: ./data/documents.db
  bleve_index_path: ./data/bleve
  vector_index_path: ./data/vectors.gob
embedding:
  provider: hash
  dimensions: 64
ingest:
  chunk_size: 40
  allowed_extensions: [".txt"]
`

const leaseText = `LEASE AGREEMENT

This lease agreement is made between the Lessor and the Lessee. The Lessee shall pay rent on the first day of each month.
A breach of contract by the Lessee entitles the Lessor to damages. The parties agree that the contract is governed by state law.
The court in Smith v. Jones, 123 F.3d 456, held that late rent is a material breach. Notice must be given in writing.`

func resetFlags() {
	jsonOutput = false
	debugFlag = false
	ingestForce = false
	searchMode = string(models.ModeHybrid)
	searchLimit = 10
	searchOffset = 0
	searchFrom = ""
	searchTo = ""
	similarLimit = 10
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeWorkspace(t *testing.T) (cfgPath, docsDir string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))
	docsDir = filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "lease.txt"), []byte(leaseText), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "scan.png"), []byte("png"), 0o644))
	return cfgPath, docsDir
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "search", "similar", "status"} {
		assert.True(t, names[want], want)
	}
}

func TestSearchCmd_Flags(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
	limit := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
	assert.Equal(t, "10", limit.DefValue)
	mode := searchCmd.Flags().Lookup("mode")
	require.NotNil(t, mode)
	assert.Equal(t, "hybrid", mode.DefValue)
	for _, name := range []string{"offset", "type", "jurisdiction", "concept", "from", "to"} {
		assert.NotNil(t, searchCmd.Flags().Lookup(name), name)
	}
}

func TestCommands_ArgValidation(t *testing.T) {
	_, err := run(t, "search")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")

	_, err = run(t, "ingest")
	require.Error(t, err)

	_, err = run(t, "similar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestBuildSearchQuery(t *testing.T) {
	resetFlags()
	searchFrom = "2020-01-31"
	q, err := buildSearchQuery([]string{"breach", " of contract "})
	require.NoError(t, err)
	assert.Equal(t, "breach  of contract", q.Query)
	assert.Equal(t, models.ModeHybrid, q.Mode)
	require.NotNil(t, q.Filters.DateFrom)
	assert.Equal(t, 2020, q.Filters.DateFrom.Year())
	assert.Nil(t, q.Filters.DateTo)

	searchTo = "31/01/2020"
	_, err = buildSearchQuery([]string{"x"})
	assert.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	_, docs := writeWorkspace(t)
	paths, err := expandPaths([]string{docs}, []string{".txt"})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "lease.txt", filepath.Base(paths[0]))

	explicit := filepath.Join(docs, "scan.png")
	paths, err = expandPaths([]string{explicit}, []string{".txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{explicit}, paths)

	_, err = expandPaths([]string{filepath.Join(docs, "missing.txt")}, nil)
	assert.Error(t, err)
}

func TestIngestSearchStatus(t *testing.T) {
	cfgPath, docs := writeWorkspace(t)
	noEnv := filepath.Join(filepath.Dir(cfgPath), "missing.env")
	base := []string{"--config", cfgPath, "--env-file", noEnv}

	out, err := run(t, append(base, "ingest", docs)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 indexed, 0 skipped, 0 failed")

	out, err = run(t, append(base, "ingest", docs)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 indexed, 1 skipped, 0 failed")

	out, err = run(t, append(base, "--json", "search", "breach", "of", "contract")...)
	require.NoError(t, err, out)
	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Results)
	assert.True(t, strings.HasPrefix(resp.Results[0].DocumentID, "file:"))
	found := false
	for _, r := range resp.Results {
		found = found || strings.Contains(strings.ToLower(r.Text), "breach")
	}
	assert.True(t, found)
	assert.False(t, resp.Degraded)

	out, err = run(t, append(base, "--json", "search", "--mode", "keyword", "F.3d")...)
	require.NoError(t, err, out)
	var citationResp models.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &citationResp))
	require.NotEmpty(t, citationResp.Results)
	assert.Contains(t, citationResp.Results[0].Text, "F.3 d 456")

	out, err = run(t, append(base, "--json", "status")...)
	require.NoError(t, err, out)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, float64(1), status["documents"])
	assert.Equal(t, status["chunks"], status["vector_index_size"])

	_, err = run(t, append(base, "similar", "missing-doc")...)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIngest_ReportsFailures(t *testing.T) {
	cfgPath, docs := writeWorkspace(t)
	noEnv := filepath.Join(filepath.Dir(cfgPath), "missing.env")

	out, err := run(t, "--config", cfgPath, "--env-file", noEnv, "ingest", filepath.Join(docs, "scan.png"))
	require.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "0 indexed, 0 skipped, 1 failed")
}

func TestSetup_MissingExplicitConfig(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "status")
	assert.Error(t, err)
}
