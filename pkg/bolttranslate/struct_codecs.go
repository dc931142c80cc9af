package bolttranslate

import (
	"github.com/cuemby/warren-bolt/pkg/packstream"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// --- shared helpers -------------------------------------------------------

func writeStrings(s packstream.Serializer, strs []string) error {
	if err := s.WriteListHeader(len(strs)); err != nil {
		return err
	}
	for _, v := range strs {
		if err := s.WriteString(v); err != nil {
			return err
		}
	}
	return nil
}

func writeProps(s packstream.Serializer, t Translator, props map[string]any) error {
	if err := s.WriteMapHeader(len(props)); err != nil {
		return err
	}
	for k, v := range props {
		if err := s.WriteString(k); err != nil {
			return err
		}
		if err := t.Serialize(s, v); err != nil {
			return err
		}
	}
	return nil
}

func propsOf(fields []any, idx int) map[string]any {
	m, _ := fields[idx].(map[string]any)
	if m == nil {
		return map[string]any{}
	}
	return m
}

func labelsOf(fields []any, idx int) []string {
	list, _ := fields[idx].([]any)
	out := make([]string, 0, len(list))
	for _, l := range list {
		if s, ok := l.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// --- Node / Relationship, pre-5.0 (3/5 fields) and >=5.0 (+element_id) ----

func writeNode3(s packstream.Serializer, t Translator, v values.Node) error {
	if err := s.WriteStructHeader(packstream.TagNode, 3); err != nil {
		return err
	}
	if err := s.WriteInt(v.Id); err != nil {
		return err
	}
	if err := writeStrings(s, v.Labels); err != nil {
		return err
	}
	return writeProps(s, t, v.Props)
}

func writeNode4(s packstream.Serializer, t Translator, v values.Node) error {
	if err := s.WriteStructHeader(packstream.TagNode, 4); err != nil {
		return err
	}
	if err := s.WriteInt(v.Id); err != nil {
		return err
	}
	if err := writeStrings(s, v.Labels); err != nil {
		return err
	}
	if err := writeProps(s, t, v.Props); err != nil {
		return err
	}
	return s.WriteString(v.ElementId)
}

func deserializeNode3(tag byte, fields []any) any {
	if len(fields) != 3 {
		return fieldCountError("node", tag, 3, len(fields))
	}
	id, _ := toInt64(fields[0])
	return values.Node{Id: id, Labels: labelsOf(fields, 1), Props: propsOf(fields, 2)}
}

func deserializeNode4(tag byte, fields []any) any {
	if len(fields) != 4 {
		return fieldCountError("node", tag, 4, len(fields))
	}
	id, _ := toInt64(fields[0])
	elementID, _ := toString(fields[3])
	return values.Node{Id: id, Labels: labelsOf(fields, 1), Props: propsOf(fields, 2), ElementId: elementID}
}

func writeUnbound3(s packstream.Serializer, t Translator, v values.UnboundRelationship) error {
	if err := s.WriteStructHeader(packstream.TagUnboundRel, 3); err != nil {
		return err
	}
	if err := s.WriteInt(v.Id); err != nil {
		return err
	}
	if err := s.WriteString(v.Type); err != nil {
		return err
	}
	return writeProps(s, t, v.Props)
}

func writeUnbound4(s packstream.Serializer, t Translator, v values.UnboundRelationship) error {
	if err := s.WriteStructHeader(packstream.TagUnboundRel, 4); err != nil {
		return err
	}
	if err := s.WriteInt(v.Id); err != nil {
		return err
	}
	if err := s.WriteString(v.Type); err != nil {
		return err
	}
	if err := writeProps(s, t, v.Props); err != nil {
		return err
	}
	return s.WriteString(v.ElementId)
}

func deserializeUnbound3(tag byte, fields []any) any {
	if len(fields) != 3 {
		return fieldCountError("unbound relationship", tag, 3, len(fields))
	}
	id, _ := toInt64(fields[0])
	typ, _ := toString(fields[1])
	return values.UnboundRelationship{Id: id, Type: typ, Props: propsOf(fields, 2)}
}

func deserializeUnbound4(tag byte, fields []any) any {
	if len(fields) != 4 {
		return fieldCountError("unbound relationship", tag, 4, len(fields))
	}
	id, _ := toInt64(fields[0])
	typ, _ := toString(fields[1])
	elementID, _ := toString(fields[3])
	return values.UnboundRelationship{Id: id, Type: typ, Props: propsOf(fields, 2), ElementId: elementID}
}

func writeRel5(s packstream.Serializer, t Translator, v values.Relationship) error {
	if err := s.WriteStructHeader(packstream.TagRelationship, 5); err != nil {
		return err
	}
	for _, id := range []int64{v.Id, v.StartId, v.EndId} {
		if err := s.WriteInt(id); err != nil {
			return err
		}
	}
	if err := s.WriteString(v.Type); err != nil {
		return err
	}
	return writeProps(s, t, v.Props)
}

func writeRel8(s packstream.Serializer, t Translator, v values.Relationship) error {
	if err := s.WriteStructHeader(packstream.TagRelationship, 8); err != nil {
		return err
	}
	for _, id := range []int64{v.Id, v.StartId, v.EndId} {
		if err := s.WriteInt(id); err != nil {
			return err
		}
	}
	if err := s.WriteString(v.Type); err != nil {
		return err
	}
	if err := writeProps(s, t, v.Props); err != nil {
		return err
	}
	for _, eid := range []string{v.ElementId, v.StartElementId, v.EndElementId} {
		if err := s.WriteString(eid); err != nil {
			return err
		}
	}
	return nil
}

func deserializeRel5(tag byte, fields []any) any {
	if len(fields) != 5 {
		return fieldCountError("relationship", tag, 5, len(fields))
	}
	id, _ := toInt64(fields[0])
	start, _ := toInt64(fields[1])
	end, _ := toInt64(fields[2])
	typ, _ := toString(fields[3])
	return values.Relationship{Id: id, StartId: start, EndId: end, Type: typ, Props: propsOf(fields, 4)}
}

func deserializeRel8(tag byte, fields []any) any {
	if len(fields) != 8 {
		return fieldCountError("relationship", tag, 8, len(fields))
	}
	id, _ := toInt64(fields[0])
	start, _ := toInt64(fields[1])
	end, _ := toInt64(fields[2])
	typ, _ := toString(fields[3])
	elementID, _ := toString(fields[5])
	startElementID, _ := toString(fields[6])
	endElementID, _ := toString(fields[7])
	return values.Relationship{
		Id: id, StartId: start, EndId: end, Type: typ, Props: propsOf(fields, 4),
		ElementId: elementID, StartElementId: startElementID, EndElementId: endElementID,
	}
}

// --- temporal types --------------------------------------------------------

func writeDuration(s packstream.Serializer, v values.Duration) error {
	if err := s.WriteStructHeader(packstream.TagDuration, 4); err != nil {
		return err
	}
	for _, n := range []int64{v.Months, v.Days, v.Seconds, v.Nanoseconds} {
		if err := s.WriteInt(n); err != nil {
			return err
		}
	}
	return nil
}

func deserializeDuration(tag byte, fields []any) any {
	if len(fields) != 4 {
		return fieldCountError("duration", tag, 4, len(fields))
	}
	months, _ := toInt64(fields[0])
	days, _ := toInt64(fields[1])
	secs, _ := toInt64(fields[2])
	nanos, _ := toInt64(fields[3])
	return values.Duration{Months: months, Days: days, Seconds: secs, Nanoseconds: nanos}
}

func writeDate(s packstream.Serializer, v values.Date) error {
	if err := s.WriteStructHeader(packstream.TagDate, 1); err != nil {
		return err
	}
	return s.WriteInt(v.EpochDays)
}

func deserializeDate(tag byte, fields []any) any {
	if len(fields) != 1 {
		return fieldCountError("date", tag, 1, len(fields))
	}
	days, _ := toInt64(fields[0])
	return values.Date{EpochDays: days}
}

func writeLocalTime(s packstream.Serializer, v values.LocalTime) error {
	if err := s.WriteStructHeader(packstream.TagLocalTime, 1); err != nil {
		return err
	}
	return s.WriteInt(v.Nanoseconds)
}

func deserializeLocalTime(tag byte, fields []any) any {
	if len(fields) != 1 {
		return fieldCountError("local time", tag, 1, len(fields))
	}
	n, _ := toInt64(fields[0])
	return values.LocalTime{Nanoseconds: n}
}

func writeTime(s packstream.Serializer, v values.Time) error {
	if err := s.WriteStructHeader(packstream.TagTime, 2); err != nil {
		return err
	}
	if err := s.WriteInt(v.Nanoseconds); err != nil {
		return err
	}
	return s.WriteInt(int64(v.OffsetSecs))
}

func deserializeTime(tag byte, fields []any) any {
	if len(fields) != 2 {
		return fieldCountError("time", tag, 2, len(fields))
	}
	n, _ := toInt64(fields[0])
	off, _ := toInt64(fields[1])
	return values.Time{Nanoseconds: n, OffsetSecs: int32(off)}
}

func writeLocalDateTime(s packstream.Serializer, v values.LocalDateTime) error {
	if err := s.WriteStructHeader(packstream.TagLocalDateTime, 2); err != nil {
		return err
	}
	if err := s.WriteInt(v.Seconds); err != nil {
		return err
	}
	return s.WriteInt(v.Nanoseconds)
}

func deserializeLocalDateTime(tag byte, fields []any) any {
	if len(fields) != 2 {
		return fieldCountError("local datetime", tag, 2, len(fields))
	}
	secs, _ := toInt64(fields[0])
	nanos, _ := toInt64(fields[1])
	return values.LocalDateTime{Seconds: secs, Nanoseconds: nanos}
}

func writeOffsetDateTimeTagged(s packstream.Serializer, tag byte, v values.OffsetDateTime) error {
	if err := s.WriteStructHeader(tag, 3); err != nil {
		return err
	}
	if err := s.WriteInt(v.Seconds); err != nil {
		return err
	}
	if err := s.WriteInt(v.Nanoseconds); err != nil {
		return err
	}
	return s.WriteInt(int64(v.OffsetSecs))
}

// deserializeOffsetDateTime returns the three fields (seconds, nanoseconds,
// offset) as received. The legacy flag is not consulted: a legacy
// "local-seconds + offset" value and a ">=5.0 UTC-seconds + offset" value
// both land in Seconds unchanged, with no conversion between the two.
func deserializeOffsetDateTime(tag byte, fields []any, legacy bool) any {
	if len(fields) != 3 {
		return fieldCountError("offset datetime", tag, 3, len(fields))
	}
	secs, _ := toInt64(fields[0])
	nanos, _ := toInt64(fields[1])
	off, _ := toInt64(fields[2])
	return values.OffsetDateTime{Seconds: secs, Nanoseconds: nanos, OffsetSecs: int32(off)}
}

func writeZonedDateTimeTagged(s packstream.Serializer, tag byte, v values.ZonedDateTime) error {
	if err := s.WriteStructHeader(tag, 3); err != nil {
		return err
	}
	if err := s.WriteInt(v.Seconds); err != nil {
		return err
	}
	if err := s.WriteInt(v.Nanoseconds); err != nil {
		return err
	}
	return s.WriteString(v.ZoneName)
}

func deserializeZonedDateTime(tag byte, fields []any, legacy bool) any {
	if len(fields) != 3 {
		return fieldCountError("zoned datetime", tag, 3, len(fields))
	}
	secs, _ := toInt64(fields[0])
	nanos, _ := toInt64(fields[1])
	zone, _ := toString(fields[2])
	if !IsKnownZone(zone) {
		return values.Broken("datetime references unknown time zone: " + zone)
	}
	return values.ZonedDateTime{Seconds: secs, Nanoseconds: nanos, ZoneName: zone}
}

// --- spatial ---------------------------------------------------------------

func writePoint2D(s packstream.Serializer, v values.Point2D) error {
	if err := s.WriteStructHeader(packstream.TagPoint2D, 3); err != nil {
		return err
	}
	if err := s.WriteInt(v.SRID); err != nil {
		return err
	}
	if err := s.WriteFloat(v.X); err != nil {
		return err
	}
	return s.WriteFloat(v.Y)
}

func deserializePoint2D(tag byte, fields []any) any {
	if len(fields) != 3 {
		return fieldCountError("point2d", tag, 3, len(fields))
	}
	srid, _ := toInt64(fields[0])
	x, _ := toFloat64(fields[1])
	y, _ := toFloat64(fields[2])
	return values.Point2D{SRID: srid, X: x, Y: y}
}

func writePoint3D(s packstream.Serializer, v values.Point3D) error {
	if err := s.WriteStructHeader(packstream.TagPoint3D, 4); err != nil {
		return err
	}
	if err := s.WriteInt(v.SRID); err != nil {
		return err
	}
	for _, f := range []float64{v.X, v.Y, v.Z} {
		if err := s.WriteFloat(f); err != nil {
			return err
		}
	}
	return nil
}

func deserializePoint3D(tag byte, fields []any) any {
	if len(fields) != 4 {
		return fieldCountError("point3d", tag, 4, len(fields))
	}
	srid, _ := toInt64(fields[0])
	x, _ := toFloat64(fields[1])
	y, _ := toFloat64(fields[2])
	z, _ := toFloat64(fields[3])
	return values.Point3D{SRID: srid, X: x, Y: y, Z: z}
}

// --- path --------------------------------------------------------------

func writePath(s packstream.Serializer, t Translator, v *values.Path) error {
	if err := s.WriteStructHeader(packstream.TagPath, 3); err != nil {
		return err
	}
	if err := s.WriteListHeader(len(v.Nodes)); err != nil {
		return err
	}
	for _, n := range v.Nodes {
		if err := t.Serialize(s, n); err != nil {
			return err
		}
	}
	if err := s.WriteListHeader(len(v.Relationships)); err != nil {
		return err
	}
	for _, r := range v.Relationships {
		if err := t.Serialize(s, r); err != nil {
			return err
		}
	}
	indices := v.RawIndices()
	if err := s.WriteListHeader(len(indices)); err != nil {
		return err
	}
	for _, idx := range indices {
		if err := s.WriteInt(idx); err != nil {
			return err
		}
	}
	return nil
}

func deserializePath(tag byte, fields []any, t Translator) any {
	if len(fields) != 3 {
		return fieldCountError("path", tag, 3, len(fields))
	}
	rawNodes, _ := fields[0].([]any)
	rawRels, _ := fields[1].([]any)
	rawIdx, _ := fields[2].([]any)

	nodes := make([]values.Node, 0, len(rawNodes))
	for _, rn := range rawNodes {
		if rs, ok := rn.(packstream.RawStruct); ok {
			if n, ok := t.DeserializeStruct(rs.Tag, rs.Fields).(values.Node); ok {
				nodes = append(nodes, n)
			}
		}
	}
	rels := make([]values.UnboundRelationship, 0, len(rawRels))
	for _, rr := range rawRels {
		if rs, ok := rr.(packstream.RawStruct); ok {
			if r, ok := t.DeserializeStruct(rs.Tag, rs.Fields).(values.UnboundRelationship); ok {
				rels = append(rels, r)
			}
		}
	}
	indices := make([]int64, 0, len(rawIdx))
	for _, ri := range rawIdx {
		if n, ok := toInt64(ri); ok {
			indices = append(indices, n)
		}
	}
	p, err := values.DecodePath(nodes, rels, indices)
	if err != nil {
		return values.Broken(err.Error())
	}
	return *p
}
