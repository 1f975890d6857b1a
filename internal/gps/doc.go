// Package gps turns a GNSS receiver into host position fixes for the
// tracking core.
//
// Sentences arrive either straight off a USB serial receiver (RMC for the
// velocity vector, GGA for altitude and fix quality) or from a gpsd JSON
// stream. Both decoders fold into the same Fix value, already converted to
// the degrees, meters and knots the rest of the system computes in; the
// dispatcher polls the latest Fix each tick and a health Snapshot is
// published alongside for the status endpoint.
package gps
