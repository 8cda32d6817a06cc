package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/backfill"
	"github.com/formbricks/riskmatch/internal/config"
	"github.com/formbricks/riskmatch/internal/models"
)

func TestParseFlags(t *testing.T) {
	cfg := &config.Config{BackfillBatchSize: 100, BackfillConcurrency: 3}

	t.Run("defaults come from config", func(t *testing.T) {
		opts, err := parseFlags(nil, cfg)
		require.NoError(t, err)
		assert.Equal(t, cliOptions{kind: kindAll, batchSize: 100, concurrency: 3}, opts)
	})

	t.Run("explicit flags", func(t *testing.T) {
		opts, err := parseFlags([]string{"-kind", "control", "-batch-size", "10", "-concurrency", "1", "-dry-run", "-force"}, cfg)
		require.NoError(t, err)
		assert.Equal(t, cliOptions{kind: "control", batchSize: 10, concurrency: 1, dryRun: true, force: true}, opts)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := parseFlags([]string{"-kind", "supplier"}, cfg)
		require.Error(t, err)
	})

	t.Run("non-positive sizes", func(t *testing.T) {
		_, err := parseFlags([]string{"-batch-size", "0"}, cfg)
		require.ErrorIs(t, err, errNonPositiveFlag)
	})
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer

	printSummary(&buf, []backfill.Progress{
		{Options: backfill.Options{Kind: models.RecordKindRisk}, Processed: 5, Succeeded: 4, Failed: 1, Pages: 1},
		{Options: backfill.Options{Kind: models.RecordKindControl, DryRun: true}, Processed: 2, Pages: 1},
		{},
	})

	out := buf.String()
	assert.Contains(t, out, "Backfill Summary")
	assert.Contains(t, out, "risk     processed: 5  succeeded: 4  failed: 1  pages: 1\n")
	assert.Contains(t, out, "control  processed: 2  succeeded: 0  failed: 0  pages: 1 (dry run)\n")
}
