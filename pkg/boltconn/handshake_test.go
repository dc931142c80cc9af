package boltconn

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopback struct {
	toServer   bytes.Buffer
	fromServer bytes.Buffer
}

func (l *loopback) Write(p []byte) (int, error) { return l.toServer.Write(p) }
func (l *loopback) Read(p []byte) (int, error)  { return l.fromServer.Read(p) }

func TestNegotiate_SendsMagicAndProposals(t *testing.T) {
	lb := &loopback{}
	lb.fromServer.Write([]byte{0x00, 0x00, 0x00, 0x05}) // major=5, minor=0

	v, err := Negotiate(lb)
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 5, Minor: 0}, v)

	sent := lb.toServer.Bytes()
	require.True(t, len(sent) == 20)
	assert.Equal(t, gopherMagic[:], sent[:4])
}

func TestNegotiate_NoMatchingVersion(t *testing.T) {
	lb := &loopback{}
	lb.fromServer.Write([]byte{0x00, 0x00, 0x00, 0x00})

	_, err := Negotiate(lb)
	assert.Error(t, err)
}
