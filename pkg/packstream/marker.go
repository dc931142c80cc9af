// Package packstream implements the Bolt wire codec: a self-describing
// binary serialisation with tagged structs for graph, spatial, temporal, and
// vector values. Every value is a marker byte followed by size/payload
// bytes; see the marker table below for the exhaustive byte ranges.
package packstream

// Marker bytes, exhaustive per the Bolt PackStream specification. Tiny-int,
// tiny-string, tiny-list, tiny-map, and struct markers pack a small size
// directly into the marker's low nibble/septet.
const (
	MarkerNull   byte = 0xC0
	MarkerFloat  byte = 0xC1
	MarkerFalse  byte = 0xC2
	MarkerTrue   byte = 0xC3
	MarkerInt8   byte = 0xC8
	MarkerInt16  byte = 0xC9
	MarkerInt32  byte = 0xCA
	MarkerInt64  byte = 0xCB
	MarkerBytes8  byte = 0xCC
	MarkerBytes16 byte = 0xCD
	MarkerBytes32 byte = 0xCE

	tinyStringBase byte = 0x80
	tinyStringMax  byte = 0x8F
	MarkerString8  byte = 0xD0
	MarkerString16 byte = 0xD1
	MarkerString32 byte = 0xD2

	tinyListBase byte = 0x90
	tinyListMax  byte = 0x9F
	MarkerList8  byte = 0xD4
	MarkerList16 byte = 0xD5
	MarkerList32 byte = 0xD6

	tinyMapBase byte = 0xA0
	tinyMapMax  byte = 0xAF
	MarkerMap8  byte = 0xD8
	MarkerMap16 byte = 0xD9
	MarkerMap32 byte = 0xDA

	tinyStructBase byte = 0xB0
	tinyStructMax  byte = 0xBF
)

// MaxStructFields is the largest field count a 4-bit struct marker can carry.
const MaxStructFields = 15

// Struct tags shared across all Bolt minor versions (spec.md §6).
const (
	TagNode            byte = 'N'
	TagRelationship    byte = 'R'
	TagUnboundRel      byte = 'r'
	TagPath            byte = 'P'
	TagPoint2D         byte = 'X'
	TagPoint3D         byte = 'Y'
	TagDate            byte = 'D'
	TagTime            byte = 'T'
	TagLocalTime       byte = 't'
	TagDateTime        byte = 'I' // UTC-patched / >=5.0 datetime with offset
	TagDateTimeZoneID  byte = 'i' // UTC-patched / >=5.0 datetime with zone id
	TagLegacyDateTime  byte = 'F' // pre-UTC-patch datetime with offset
	TagLegacyDateTimeZ byte = 'f' // pre-UTC-patch datetime with zone id
	TagLocalDateTime   byte = 'd'
	TagDuration        byte = 'E'
	TagVector          byte = 'V'
)
