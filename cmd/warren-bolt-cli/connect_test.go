package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-bolt/pkg/bolt"
)

func TestConnectCommand_PrintsNegotiatedDetails(t *testing.T) {
	addr := startFakeServer(t, map[byte][][]byte{
		bolt.TagHello: {encodeSuccess(t, map[string]any{
			"server":        "Neo4j/5.20.0",
			"connection_id": "bolt-1234",
		})},
	})

	cmd := rootCmd
	cmd.SetArgs([]string{"connect", "bolt://" + addr})

	out := captureStdout(t, func() {
		require.NoError(t, cmd.Execute())
	})

	assert.True(t, strings.Contains(out, addr))
	assert.True(t, strings.Contains(out, "5.0"))
	assert.True(t, strings.Contains(out, "Neo4j/5.20.0"))
	assert.True(t, strings.Contains(out, "bolt-1234"))
}
