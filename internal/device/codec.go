package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// Wire format of the terminal protocol: every TCP frame is an 8-byte top
// header (magic + payload size, little-endian) followed by the payload.
// The payload starts with an 8-byte command header (command, checksum,
// session id, reply id) and an optional data section. The checksum is a
// 16-bit ones'-complement sum over the command header (with the checksum
// field zeroed) and the data.

const (
	cmdConnect  uint16 = 1000
	cmdExit     uint16 = 1001
	cmdAuth     uint16 = 1102
	cmdRegEvent uint16 = 500

	cmdAckOK     uint16 = 2000
	cmdAckError  uint16 = 2001
	cmdAckUnauth uint16 = 2005

	// Realtime event class for attendance logs.
	efAttLog uint32 = 1
)

var frameMagic = [4]byte{0x50, 0x50, 0x82, 0x7d}

var (
	errBadMagic    = errors.New("bad frame magic")
	errBadChecksum = errors.New("bad packet checksum")
	errShortPacket = errors.New("short packet")
)

type packet struct {
	command uint16
	session uint16
	reply   uint16
	data    []byte
}

// checksum16 folds the byte stream into a 16-bit ones'-complement sum.
func checksum16(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(b[i:]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1])
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

func encodePacket(p packet) []byte {
	payload := make([]byte, 8+len(p.data))
	binary.LittleEndian.PutUint16(payload[0:], p.command)
	// checksum field stays zero while summing
	binary.LittleEndian.PutUint16(payload[4:], p.session)
	binary.LittleEndian.PutUint16(payload[6:], p.reply)
	copy(payload[8:], p.data)
	binary.LittleEndian.PutUint16(payload[2:], checksum16(payload))

	frame := make([]byte, 8+len(payload))
	copy(frame[0:4], frameMagic[:])
	binary.LittleEndian.PutUint32(frame[4:], uint32(len(payload)))
	copy(frame[8:], payload)
	return frame
}

func decodePayload(payload []byte) (packet, error) {
	if len(payload) < 8 {
		return packet{}, errShortPacket
	}
	p := packet{
		command: binary.LittleEndian.Uint16(payload[0:]),
		session: binary.LittleEndian.Uint16(payload[4:]),
		reply:   binary.LittleEndian.Uint16(payload[6:]),
	}
	got := binary.LittleEndian.Uint16(payload[2:])
	scratch := make([]byte, len(payload))
	copy(scratch, payload)
	scratch[2], scratch[3] = 0, 0
	if checksum16(scratch) != got {
		return packet{}, errBadChecksum
	}
	p.data = append([]byte(nil), payload[8:]...)
	return p, nil
}

// readFrame reads one full frame from the wire and returns its payload.
func readFrame(r io.Reader) ([]byte, error) {
	var top [8]byte
	if _, err := io.ReadFull(r, top[:]); err != nil {
		return nil, err
	}
	if [4]byte(top[0:4]) != frameMagic {
		return nil, errBadMagic
	}
	size := binary.LittleEndian.Uint32(top[4:])
	if size < 8 || size > 1<<20 {
		return nil, fmt.Errorf("implausible frame size %d", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// decodeTimestamp unpacks the firmware's 6-byte wall-clock encoding:
// second, minute, hour, day, month, year-2000.
func decodeTimestamp(b []byte) (time.Time, error) {
	if len(b) != 6 {
		return time.Time{}, errShortPacket
	}
	sec, min, hour := int(b[0]), int(b[1]), int(b[2])
	day, month, year := int(b[3]), int(b[4]), int(b[5])+2000
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("implausible timestamp % x", b)
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, time.UTC), nil
}

func encodeTimestamp(t time.Time) []byte {
	t = t.UTC()
	return []byte{
		byte(t.Second()), byte(t.Minute()), byte(t.Hour()),
		byte(t.Day()), byte(t.Month()), byte(t.Year() - 2000),
	}
}

// decodeAttLog parses the data section of a realtime attendance packet.
// Two firmware layouts are in the wild: a 12-byte one with a numeric badge
// id, and a 32-byte one with a NUL-padded ASCII code.
func decodeAttLog(data []byte) (Event, error) {
	switch len(data) {
	case 12:
		code := binary.LittleEndian.Uint32(data[0:])
		ts, err := decodeTimestamp(data[6:12])
		if err != nil {
			return Event{}, err
		}
		return Event{
			EmployeeCode: fmt.Sprintf("%d", code),
			VerifyMode:   int(data[4]),
			Punch:        int(data[5]),
			RecordedAt:   ts,
		}, nil
	case 32:
		code := trimPadding(data[0:24])
		if code == "" {
			return Event{}, errors.New("empty employee code")
		}
		ts, err := decodeTimestamp(data[26:32])
		if err != nil {
			return Event{}, err
		}
		return Event{
			EmployeeCode: code,
			VerifyMode:   int(data[24]),
			Punch:        int(data[25]),
			RecordedAt:   ts,
		}, nil
	default:
		return Event{}, fmt.Errorf("unsupported attlog layout: %d bytes", len(data))
	}
}

func trimPadding(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == 0 || b[end-1] == ' ') {
		end--
	}
	return string(b[:end])
}

// commKeyDigest derives the 4-byte auth response from the shared comm key
// and the session id handed out by CMD_CONNECT.
func commKeyDigest(key int, session uint16) []byte {
	var k uint32
	for i := 0; i < 32; i++ {
		if key&(1<<i) != 0 {
			k = k<<1 | 1
		} else {
			k <<= 1
		}
	}
	k += uint32(session)

	b := []byte{byte(k), byte(k >> 8), byte(k >> 16), byte(k >> 24)}
	b[0] ^= 'Z'
	b[1] ^= 'K'
	b[2] ^= 'S'
	b[3] ^= 'O'
	b[0], b[1] = b[1], b[0]
	b[2], b[3] = b[3], b[2]

	const ticks = 50
	return []byte{b[0] ^ ticks, b[1] ^ ticks, ticks, b[3] ^ ticks}
}
