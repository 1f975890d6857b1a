// Package gdl90 encodes the GDL90 message subset served to EFB displays:
// heartbeat, ownship report and traffic report, plus the ForeFlight ID
// message some apps require before they draw a device.
package gdl90

import "time"

const (
	flagByte   = 0x7E
	escapeByte = 0x7D
	escapeXor  = 0x20
)

// Frame takes an unframed GDL90 message (message ID + payload bytes), appends
// the GDL90 CRC16, applies byte-stuffing, and wraps with 0x7E flags.
func Frame(message []byte) []byte {
	crc := crc16(message)

	// CRC goes out little-endian, low byte first.
	withCRC := make([]byte, 0, len(message)+2)
	withCRC = append(withCRC, message...)
	withCRC = append(withCRC, byte(crc&0xFF), byte((crc>>8)&0xFF))

	out := make([]byte, 0, 2+len(withCRC)*2)
	out = append(out, flagByte)
	for _, b := range withCRC {
		if b == flagByte || b == escapeByte {
			out = append(out, escapeByte, b^escapeXor)
			continue
		}
		out = append(out, b)
	}
	out = append(out, flagByte)
	return out
}

// HeartbeatFrame builds and frames a GDL90 Heartbeat (0x00) for the current
// wall clock. Clients expect one per second.
func HeartbeatFrame(gpsValid bool, maintenanceRequired bool) []byte {
	return HeartbeatFrameAt(time.Now().UTC(), gpsValid, maintenanceRequired)
}

// HeartbeatFrameAt builds and frames a Heartbeat for a given UTC instant.
func HeartbeatFrameAt(nowUTC time.Time, gpsValid bool, maintenanceRequired bool) []byte {
	msg := make([]byte, 7)
	msg[0] = 0x00

	// Byte 1 flags:
	// - bit0: UAT initialized
	// - bit4: addr talkback (set)
	// - bit6: maintenance required
	// - bit7: GPS position valid
	flags := byte(0x01) | byte(0x10)
	if gpsValid {
		flags |= 0x80
	}
	if maintenanceRequired {
		flags |= 0x40
	}
	msg[1] = flags

	midnightUTC := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	seconds := uint32(nowUTC.Sub(midnightUTC).Seconds())

	// Time since 0000Z, 17 bits with the high bit folded into byte 2.
	msg[2] = byte(((seconds >> 16) << 7) | 0x01) // UTC OK bit
	msg[3] = byte(seconds & 0xFF)
	msg[4] = byte((seconds & 0xFFFF) >> 8)
	msg[5] = 0x00
	msg[6] = 0x00

	return Frame(msg)
}
