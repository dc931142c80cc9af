package bolttranslate

import "time"

// IsKnownZone reports whether the running process can load the named IANA
// time zone. A datetime referencing a zone that fails to load decodes to a
// BrokenValue instead of being silently normalised (spec.md §9 "Open
// question — time-zone coverage": the accepted zone set is
// implementation-defined, and this module defers entirely to Go's tzdata).
func IsKnownZone(name string) bool {
	if name == "" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
