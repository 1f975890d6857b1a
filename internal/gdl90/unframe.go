package gdl90

import "fmt"

// Unframe strips the 0x7E flags, undoes byte stuffing and checks the
// trailing CRC. It returns the message (ID byte plus payload), whether the
// CRC matched, and an error for frames that are structurally broken.
func Unframe(frame []byte) ([]byte, bool, error) {
	if len(frame) < 5 {
		return nil, false, fmt.Errorf("frame too short (%d bytes)", len(frame))
	}
	if frame[0] != flagByte || frame[len(frame)-1] != flagByte {
		return nil, false, fmt.Errorf("frame not delimited by 0x7E")
	}

	body := make([]byte, 0, len(frame)-2)
	esc := false
	for _, b := range frame[1 : len(frame)-1] {
		switch {
		case esc:
			body = append(body, b^escapeXor)
			esc = false
		case b == escapeByte:
			esc = true
		default:
			body = append(body, b)
		}
	}
	if esc {
		return nil, false, fmt.Errorf("frame ends inside an escape sequence")
	}
	if len(body) < 3 {
		return nil, false, fmt.Errorf("frame carries no message")
	}

	msg := body[:len(body)-2]
	sent := uint16(body[len(body)-2]) | uint16(body[len(body)-1])<<8
	return msg, sent == crc16(msg), nil
}
