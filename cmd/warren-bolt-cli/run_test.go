package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/bolt"
)

func TestRunCommand_PrintsKeysAndSummary(t *testing.T) {
	addr := startFakeServer(t, map[byte][][]byte{
		bolt.TagHello: {encodeSuccess(t, map[string]any{"server": "Neo4j/5.20.0"})},
		bolt.TagRun:   {encodeSuccess(t, map[string]any{"fields": []string{"n"}})},
		bolt.TagPull: {encodeSuccess(t, map[string]any{
			"has_more": false,
			"bookmark": "bm:1",
		})},
	})

	cmd := rootCmd
	cmd.SetArgs([]string{"run", "bolt://" + addr, "RETURN 1 AS n"})

	out := captureStdout(t, func() {
		require.NoError(t, cmd.Execute())
	})

	assert.True(t, strings.Contains(out, "Keys: [n]"))
	assert.True(t, strings.Contains(out, "Records: 0"))
	assert.True(t, strings.Contains(out, "bm:1"))
}
