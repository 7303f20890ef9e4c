package main

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/erpdocumentflow/internal/config"
	"github.com/Lllllllleong/erpdocumentflow/internal/invoice"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
)

// execute runs the root command in-process with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, sub := range rootCmd.Commands() {
		sub.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch-01.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"invoices":[{"invoiceId":"INV1","accountingDate":"2021-01-01","invoiceLines":[{"lineAmount":"100"},{"lineAmount":"5"}]}]}`), 0o644))

	out, err := execute(t, "render", "--input", input)
	require.NoError(t, err)
	assert.Contains(t, out, "1 invoices, 2 lines")

	archive, err := os.ReadFile(filepath.Join(dir, "batch-01.zip"))
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{invoice.HeaderEntryName, invoice.LinesEntryName}, names)
}

func TestRender_CustomTemplates(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.json")
	header := filepath.Join(dir, "header.template")
	line := filepath.Join(dir, "line.template")
	output := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(input, []byte(`{"invoices":[{"invoiceId":"INV1","accountingDate":"2021-01-01","invoiceLines":[]}]}`), 0o644))
	require.NoError(t, os.WriteFile(header, []byte("$INVOICEID\n"), 0o644))
	require.NoError(t, os.WriteFile(line, []byte("$INVOICELINENUM\n"), 0o644))

	_, err := execute(t, "render", "-i", input, "-o", output, "--header-template", header, "--line-template", line)
	require.NoError(t, err)
	_, err = os.Stat(output)
	assert.NoError(t, err)
}

func TestRender_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"invoices":[{"invoiceId":"A","accountingDate":"2021-01-01"}]}`), 0o644))

	_, err := execute(t, "render")
	assert.ErrorContains(t, err, `required flag(s) "input" not set`)

	_, err = execute(t, "render", "--input", filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read input file")

	_, err = execute(t, "render", "--input", bad)
	assert.ErrorContains(t, err, "DATA_SHAPE")

	_, err = execute(t, "render", "--input", bad, "--header-template", "h.template")
	assert.ErrorContains(t, err, "must be given together")
}

func TestJobtag(t *testing.T) {
	out, err := execute(t, "jobtag", "batch-01.zip_ERPJOBID_98765")
	require.NoError(t, err)
	assert.Contains(t, out, "document: batch-01.zip")
	assert.Contains(t, out, "job id:   98765")

	_, err = execute(t, "jobtag", "batch-01.zip")
	assert.ErrorContains(t, err, "not a pipeline-owned object")

	_, err = execute(t, "jobtag")
	assert.Error(t, err)
}

func TestStages(t *testing.T) {
	for _, key := range []string{"JSON_INBOUND_BUCKET", "ZIP_INBOUND_BUCKET", "SUCCEEDED_BUCKET", "MINIO_ENDPOINT"} {
		t.Setenv(key, "")
	}
	t.Setenv("STORAGE_BACKEND", "gcs")
	t.Setenv("PROCESSING_BUCKET", "processing")
	t.Setenv("FAILED_BUCKET", "failed")

	store := storage.NewMemoryStore()
	store.Seed("processing", "batch-01.zip_ERPJOBID_98765", []byte("zip"))
	store.Seed("processing", "stray.zip", []byte("x"))
	store.Seed("failed", "batch-00.zip_ERPJOBID_1", []byte("zip"))

	prev := openStore
	openStore = func(context.Context, config.StorageConfig) (storage.Store, error) { return store, nil }
	defer func() { openStore = prev }()

	out, err := execute(t, "stages")
	require.NoError(t, err)
	assert.Contains(t, out, "processing (processing): 2 object(s)")
	assert.Contains(t, out, "document=batch-01.zip job=98765")
	assert.Contains(t, out, "stray.zip\t1 bytes\t(not job-tagged)")
	assert.Contains(t, out, "failed (failed): 1 object(s)")
	assert.NotContains(t, out, "succeeded")
	assert.Equal(t, 2, store.Calls("list"))

	out, err = execute(t, "stages", "--prefix", "batch")
	require.NoError(t, err)
	assert.Contains(t, out, "processing (processing): 1 object(s)")
}

func TestStages_NothingConfigured(t *testing.T) {
	for _, key := range []string{"JSON_INBOUND_BUCKET", "ZIP_INBOUND_BUCKET", "PROCESSING_BUCKET", "SUCCEEDED_BUCKET", "FAILED_BUCKET"} {
		t.Setenv(key, "")
	}
	t.Setenv("STORAGE_BACKEND", "gcs")

	_, err := execute(t, "stages")
	assert.ErrorContains(t, err, "no stage buckets configured")
}
