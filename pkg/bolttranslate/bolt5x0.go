package bolttranslate

import (
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Bolt5x0Translator covers the wire-shape deltas introduced across the 5.x
// minor line (5.0 through 5.8): Node/Relationship gain element_id fields,
// and datetimes are always UTC-seconds + offset/zone-id (the 4.4 "UTC
// patch" becomes the unconditional default). Message-extras-only additions
// across 5.1-5.8 (LOGON, notification filters, telemetry, SSR hints) live in
// pkg/bolt's message builders, not here, since they never change a struct's
// field shape.
type Bolt5x0Translator struct {
	base *Bolt4x4Translator
}

func NewBolt5x0Translator() *Bolt5x0Translator {
	return &Bolt5x0Translator{base: NewBolt4x4Translator(true)}
}

func (t *Bolt5x0Translator) Serialize(s packstream.Serializer, value any) error {
	return writePrimitive(s, value, t.serializeStruct)
}

func (t *Bolt5x0Translator) serializeStruct(s packstream.Serializer, value any) (bool, error) {
	switch v := value.(type) {
	case values.Node:
		return true, writeNode4(s, t, v)
	case values.UnboundRelationship:
		return true, writeUnbound4(s, t, v)
	case values.Relationship:
		return true, writeRel8(s, t, v)
	case values.OffsetDateTime:
		return true, writeOffsetDateTimeTagged(s, packstream.TagDateTime, v)
	case values.ZonedDateTime:
		return true, writeZonedDateTimeTagged(s, packstream.TagDateTimeZoneID, v)
	default:
		return t.base.serializeStruct(s, value)
	}
}

func (t *Bolt5x0Translator) DeserializeStruct(tag byte, fields []any) any {
	switch tag {
	case packstream.TagNode:
		return deserializeNode4(tag, fields)
	case packstream.TagUnboundRel:
		return deserializeUnbound4(tag, fields)
	case packstream.TagRelationship:
		return deserializeRel8(tag, fields)
	case packstream.TagDateTime:
		return deserializeOffsetDateTime(tag, fields, false)
	case packstream.TagDateTimeZoneID:
		return deserializeZonedDateTime(tag, fields, false)
	case packstream.TagPath:
		return deserializePath(tag, fields, t)
	default:
		return t.base.DeserializeStruct(tag, fields)
	}
}
