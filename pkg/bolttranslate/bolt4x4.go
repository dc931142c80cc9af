package bolttranslate

import (
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Bolt4x4Translator is the base translator: pre-element_id Node/Relationship
// shapes, legacy 'F'/'f' datetimes, and the optional UTC patch a 4.4 server
// may opt a connection into via the HELLO response hint `patch_bolt:
// ["utc"]` (spec.md §4.2).
type Bolt4x4Translator struct {
	UTCPatch bool
}

func NewBolt4x4Translator(utcPatch bool) *Bolt4x4Translator {
	return &Bolt4x4Translator{UTCPatch: utcPatch}
}

func (t *Bolt4x4Translator) Serialize(s packstream.Serializer, value any) error {
	return writePrimitive(s, value, t.serializeStruct)
}

func (t *Bolt4x4Translator) serializeStruct(s packstream.Serializer, value any) (bool, error) {
	switch v := value.(type) {
	case values.Node:
		return true, writeNode3(s, t, v)
	case values.UnboundRelationship:
		return true, writeUnbound3(s, t, v)
	case values.Relationship:
		return true, writeRel5(s, t, v)
	case values.Duration:
		return true, writeDuration(s, v)
	case values.Date:
		return true, writeDate(s, v)
	case values.LocalTime:
		return true, writeLocalTime(s, v)
	case values.Time:
		return true, writeTime(s, v)
	case values.LocalDateTime:
		return true, writeLocalDateTime(s, v)
	case values.OffsetDateTime:
		return true, t.writeOffsetDateTimeLegacy(s, v)
	case values.ZonedDateTime:
		return true, t.writeZonedDateTimeLegacy(s, v)
	case values.Point2D:
		return true, writePoint2D(s, v)
	case values.Point3D:
		return true, writePoint3D(s, v)
	case *values.Path:
		return true, writePath(s, t, v)
	default:
		return false, nil
	}
}

func (t *Bolt4x4Translator) DeserializeStruct(tag byte, fields []any) any {
	switch tag {
	case packstream.TagNode:
		return deserializeNode3(tag, fields)
	case packstream.TagUnboundRel:
		return deserializeUnbound3(tag, fields)
	case packstream.TagRelationship:
		return deserializeRel5(tag, fields)
	case packstream.TagDuration:
		return deserializeDuration(tag, fields)
	case packstream.TagDate:
		return deserializeDate(tag, fields)
	case packstream.TagLocalTime:
		return deserializeLocalTime(tag, fields)
	case packstream.TagTime:
		return deserializeTime(tag, fields)
	case packstream.TagLocalDateTime:
		return deserializeLocalDateTime(tag, fields)
	case packstream.TagLegacyDateTime:
		return deserializeOffsetDateTime(tag, fields, !t.UTCPatch)
	case packstream.TagLegacyDateTimeZ:
		return deserializeZonedDateTime(tag, fields, !t.UTCPatch)
	case packstream.TagDateTime:
		return deserializeOffsetDateTime(tag, fields, false)
	case packstream.TagDateTimeZoneID:
		return deserializeZonedDateTime(tag, fields, false)
	case packstream.TagPoint2D:
		return deserializePoint2D(tag, fields)
	case packstream.TagPoint3D:
		return deserializePoint3D(tag, fields)
	case packstream.TagPath:
		return deserializePath(tag, fields, t)
	default:
		return values.UnknownStruct(tag, fields)
	}
}

// writeOffsetDateTimeLegacy encodes an OffsetDateTime using tag 'F' (local
// seconds + offset) unless the UTC patch is active, in which case it uses
// 'I' (UTC seconds + offset) like >=5.0.
func (t *Bolt4x4Translator) writeOffsetDateTimeLegacy(s packstream.Serializer, v values.OffsetDateTime) error {
	tag := packstream.TagLegacyDateTime
	if t.UTCPatch {
		tag = packstream.TagDateTime
	}
	return writeOffsetDateTimeTagged(s, tag, v)
}

func (t *Bolt4x4Translator) writeZonedDateTimeLegacy(s packstream.Serializer, v values.ZonedDateTime) error {
	tag := packstream.TagLegacyDateTimeZ
	if t.UTCPatch {
		tag = packstream.TagDateTimeZoneID
	}
	return writeZonedDateTimeTagged(s, tag, v)
}
