package gdl90

import (
	"testing"
	"time"
)

func unframeAndCheckCRC(t *testing.T, frame []byte) []byte {
	t.Helper()
	msg, crcOK, err := Unframe(frame)
	if err != nil {
		t.Fatalf("unframe: %v", err)
	}
	if !crcOK {
		t.Fatalf("crc mismatch")
	}
	return msg
}

func TestGolden_Heartbeat_Packing(t *testing.T) {
	nowUTC := time.Date(2020, time.January, 1, 1, 2, 3, 0, time.UTC) // 01:02:03
	msg := unframeAndCheckCRC(t, HeartbeatFrameAt(nowUTC, true, false))

	want := []byte{0x00, 0x91, 0x01, 0x8B, 0x0E, 0x00, 0x00}
	if len(msg) != len(want) {
		t.Fatalf("unexpected len: got %d want %d", len(msg), len(want))
	}
	for i := range want {
		if msg[i] != want[i] {
			t.Fatalf("byte[%d] mismatch: got 0x%02X want 0x%02X (msg=% X)", i, msg[i], want[i], msg)
		}
	}
}

func TestGolden_OwnshipReport_MinimalVector(t *testing.T) {
	msg := unframeAndCheckCRC(t, OwnshipReportFrame(Ownship{
		ICAO:        [3]byte{0x01, 0x02, 0x03},
		LatDeg:      45.0,
		LonDeg:      -90.0,
		AltFeet:     0,
		HaveNICNACp: true,
		NIC:         8,
		NACp:        8,
		GroundKt:    100,
		TrackDeg:    90,
		Callsign:    "N12345",
		Emitter:     0x01,
		Emergency:   0,
	}))

	want := []byte{
		0x0A,
		0x00,
		0x01, 0x02, 0x03,
		0x20, 0x00, 0x00, // lat 45 deg
		0xC0, 0x00, 0x00, // lon -90 deg
		0x02, 0x89, // alt=0ft => 0x028 and flags 0x09
		0x88,             // NIC/NACp
		0x06, 0x48, 0x00, // gs=100 (0x064), vvel=unknown (0x800)
		0x40, // track=90deg => 64
		0x01, // emitter
		'N', '1', '2', '3', '4', '5', ' ', ' ',
		0x00, // priority/emergency
	}

	if len(msg) != len(want) {
		t.Fatalf("unexpected len: got %d want %d", len(msg), len(want))
	}
	for i := range want {
		if msg[i] != want[i] {
			t.Fatalf("byte[%d] mismatch: got 0x%02X want 0x%02X (msg=% X)", i, msg[i], want[i], msg)
		}
	}
}

func TestGolden_TrafficReport_MinimalVector(t *testing.T) {
	msg := unframeAndCheckCRC(t, TrafficReportFrame(Traffic{
		AddrType:        0x00,
		ICAO:            [3]byte{0x0A, 0x0B, 0x0C},
		LatDeg:          45.0,
		LonDeg:          -90.0,
		AltFeet:         0,
		NIC:             8,
		NACp:            7,
		GroundKt:        120,
		TrackDeg:        90,
		VvelFpm:         0,
		OnGround:        false,
		Extrapolated:    false,
		EmitterCategory: 0x01,
		Tail:            "TGT0001",
		PriorityStatus:  0,
	}))

	want := []byte{
		0x14,
		0x00,
		0x0A, 0x0B, 0x0C,
		0x20, 0x00, 0x00, // lat 45 deg
		0xC0, 0x00, 0x00, // lon -90 deg
		0x02, 0x89, // alt=0ft => 0x028 and indicator bits (track-valid + airborne)
		0x87,
		0x07, 0x80, 0x00, // spd=120 (0x078), vvel=0
		0x40, // track
		0x01, // emitter
		'T', 'G', 'T', '0', '0', '0', '1', ' ',
		0x00,
	}

	if len(msg) != len(want) {
		t.Fatalf("unexpected len: got %d want %d", len(msg), len(want))
	}
	for i := range want {
		if msg[i] != want[i] {
			t.Fatalf("byte[%d] mismatch: got 0x%02X want 0x%02X (msg=% X)", i, msg[i], want[i], msg)
		}
	}
}

func TestGolden_TrafficReport_AlertBit(t *testing.T) {
	msg := unframeAndCheckCRC(t, TrafficReportFrame(Traffic{
		AddrType: 0x00,
		ICAO:     [3]byte{0x0A, 0x0B, 0x0C},
		Alert:    true,
	}))
	if msg[1] != 0x10 {
		t.Fatalf("alert byte 0x%02X want 0x10", msg[1])
	}
}
