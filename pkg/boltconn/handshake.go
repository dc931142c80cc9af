// Package boltconn implements the transport layer beneath the Bolt protocol
// handler: the 20-byte version handshake and the chunked message framing
// (spec.md §4.8, §6 "Wire protocol").
package boltconn

import (
	"encoding/binary"
	"fmt"
	"io"
)

// gopherMagic is the four-byte preamble every Bolt connection opens with.
var gopherMagic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// Version is a Bolt protocol version, major.minor.
type Version struct {
	Major byte
	Minor byte
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor)}

// proposal packs a version range into the 4-byte little-endian-range,
// big-endian-major/minor form the handshake wire format requires: byte 0 is
// the range width (number of additional backward minors also accepted),
// byte 1 is unused/reserved (zero), byte 2 is minor, byte 3 is major.
func proposal(v Version, rangeWidth byte) [4]byte {
	return [4]byte{rangeWidth, 0, v.Minor, v.Major}
}

// offeredVersions is the highest-to-lowest list of handler versions this
// driver supports, newest first; the handshake only ever sends the four
// highest per the wire limit.
var offeredVersions = []Version{
	{6, 0},
	{5, 8},
	{5, 0},
	{4, 4},
}

// Negotiate performs the client side of the handshake: it writes the magic
// bytes and up to four version proposals, then reads back the server's
// chosen version. A zero version in the reply means the server rejected all
// proposals.
func Negotiate(rw io.ReadWriter) (Version, error) {
	buf := make([]byte, 0, 20)
	buf = append(buf, gopherMagic[:]...)
	proposals := offeredVersions
	if len(proposals) > 4 {
		proposals = proposals[:4]
	}
	for _, v := range proposals {
		p := proposal(v, rangeWidthFor(v))
		buf = append(buf, p[:]...)
	}
	for len(buf) < 20 {
		buf = append(buf, 0, 0, 0, 0)
	}
	if _, err := rw.Write(buf); err != nil {
		return Version{}, fmt.Errorf("boltconn: handshake write: %w", err)
	}

	reply := make([]byte, 4)
	if _, err := io.ReadFull(rw, reply); err != nil {
		return Version{}, fmt.Errorf("boltconn: handshake read: %w", err)
	}
	chosen := Version{Major: reply[3], Minor: reply[2]}
	if chosen.Major == 0 && chosen.Minor == 0 && binary.BigEndian.Uint32(reply) != 0 {
		return Version{}, fmt.Errorf("boltconn: server rejected all proposed versions")
	}
	if chosen.Major == 0 && chosen.Minor == 0 {
		return Version{}, fmt.Errorf("boltconn: no matching bolt version")
	}
	return chosen, nil
}

// rangeWidthFor lets a 4.x proposal also match any earlier 4.x minor a
// server understands; 5.x and 6.0 proposals are pinned (range width 0)
// since this driver implements one handler per distinct minor.
func rangeWidthFor(v Version) byte {
	if v.Major == 4 {
		return 4
	}
	return 0
}
