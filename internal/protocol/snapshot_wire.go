package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WirePlayerState is the on-the-wire encoding of one PlayerState: a position
// triplet, one byte of yaw, and a float32 pitch.
type WirePlayerState struct {
	X, Y, Z float32
	YawByte byte
	Pitch   float32
}

// localBlockSize is the trailing per-recipient block: a signed slot index
// (0xFFFF for "none") followed by the receiving connection's own full-
// precision yaw and velocity, carried alongside the byte-quantized public
// player array rather than inside it (see LocalPlayerState).
const localBlockSize = 2 + 4 + 4 + 4

// EncodeSnapshot serializes s to its wire form: a u16 tick, the u32 active
// mask, one WirePlayerState per set bit in the mask (MSB-first), then the
// trailing local block. Invariant enforced by construction:
// popcount(active_mask) == number of serialized player entries.
func EncodeSnapshot(s *Snapshot) []byte {
	buf := make([]byte, 0, 6+PopCount(s.ActiveMask)*17+localBlockSize)
	var head [6]byte
	binary.BigEndian.PutUint16(head[0:2], uint16(s.Tick))
	binary.BigEndian.PutUint32(head[2:6], s.ActiveMask)
	buf = append(buf, head[:]...)

	for bit := MaxPlayers - 1; bit >= 0; bit-- {
		if s.ActiveMask&(1<<uint(bit)) == 0 {
			continue
		}
		p := s.Players[bit]
		buf = appendFloat32(buf, p.X)
		buf = appendFloat32(buf, p.Y)
		buf = appendFloat32(buf, p.Z)
		buf = append(buf, p.YawByte)
		buf = appendFloat32(buf, p.Pitch)
	}

	var slot [2]byte
	binary.BigEndian.PutUint16(slot[:], uint16(int16(s.LocalSlot)))
	buf = append(buf, slot[:]...)
	if s.LocalSlot >= 0 {
		buf = appendFloat32(buf, s.Local.Yaw)
		buf = appendFloat32(buf, s.Local.VX)
		buf = appendFloat32(buf, s.Local.VY)
	}
	return buf
}

// DecodeSnapshot parses the wire form produced by EncodeSnapshot, placing
// each serialized element at the next set bit of the active mask
// (MSB-first, matching the encoder). wireTick is the raw 16-bit tick field;
// callers must unwrap it to a 64-bit tick via netbuf.Unwrapper before
// storing it in a NetworkBuffer.
func DecodeSnapshot(data []byte) (wireTick uint16, s Snapshot, err error) {
	if len(data) < 6 {
		return 0, s, fmt.Errorf("protocol: snapshot too short: %d bytes", len(data))
	}
	wireTick = binary.BigEndian.Uint16(data[0:2])
	s.Tick = uint64(wireTick)
	s.ActiveMask = binary.BigEndian.Uint32(data[2:6])

	want := PopCount(s.ActiveMask)
	offset := 6
	const elementSize = 4 + 4 + 4 + 1 + 4
	if len(data) < offset+want*elementSize {
		return 0, s, fmt.Errorf("protocol: snapshot truncated: want %d players, have %d bytes", want, len(data)-offset)
	}

	placed := 0
	for bit := MaxPlayers - 1; bit >= 0 && placed < want; bit-- {
		if s.ActiveMask&(1<<uint(bit)) == 0 {
			continue
		}
		p := PlayerState{
			X:       readFloat32(data[offset : offset+4]),
			Y:       readFloat32(data[offset+4 : offset+8]),
			Z:       readFloat32(data[offset+8 : offset+12]),
			YawByte: data[offset+12],
			Pitch:   readFloat32(data[offset+13 : offset+17]),
		}
		offset += elementSize
		s.Players[bit] = p
		s.Active[bit] = true
		placed++
	}

	if placed != PopCount(s.ActiveMask) {
		return 0, s, fmt.Errorf("protocol: mask/len invariant violated: popcount=%d placed=%d", PopCount(s.ActiveMask), placed)
	}

	s.LocalSlot = -1
	if len(data) >= offset+2 {
		slot := int16(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2
		if slot >= 0 {
			if len(data) < offset+12 {
				return 0, s, fmt.Errorf("protocol: snapshot truncated: missing local block for slot %d", slot)
			}
			s.LocalSlot = int(slot)
			local, _ := s.SlotFor(s.LocalSlot)
			s.Local = LocalPlayerState{
				PlayerState: local,
				Yaw:         readFloat32(data[offset : offset+4]),
				VX:          readFloat32(data[offset+4 : offset+8]),
				VY:          readFloat32(data[offset+8 : offset+12]),
			}
		}
	}

	return wireTick, s, nil
}

func appendFloat32(buf []byte, v float32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	return append(buf, b[:]...)
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}
