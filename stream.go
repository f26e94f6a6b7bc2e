package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/pion/dtls/v2"
)

const (
	hueStreamPort   = 2100
	hueHeaderSize   = 52
	hueChannelBytes = 7
)

// Streamer sends per-channel colors to a Hue entertainment area over DTLS.
type Streamer struct {
	conn       net.Conn
	areaID     string
	channelIDs []uint8
	seq        uint8
	buf        []byte
	segment    []Color
}

// NewStreamer performs the DTLS handshake with the bridge at ip.
func NewStreamer(ctx context.Context, ip net.IP, creds BridgeCredentials, areaID string, channelIDs []uint8) (*Streamer, error) {
	psk, err := hex.DecodeString(creds.Clientkey)
	if err != nil {
		return nil, fmt.Errorf("decoding clientkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := dtls.DialWithContext(ctx, "udp", &net.UDPAddr{IP: ip, Port: hueStreamPort}, &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint:    []byte(creds.Username),
		CipherSuites:       []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_GCM_SHA256},
		InsecureSkipVerify: true,
	})
	if err != nil {
		return nil, fmt.Errorf("DTLS handshake: %w", err)
	}

	return &Streamer{
		conn:       conn,
		areaID:     areaID,
		channelIDs: channelIDs,
		segment:    make([]Color, len(channelIDs)),
	}, nil
}

// SendColors spreads the light sequence over the area's channels: the
// sequence is cut into one contiguous segment per channel and each
// channel shows its segment's mean color.
func (s *Streamer) SendColors(colors []Color) error {
	segmentColors(s.segment, colors)
	s.buf = BuildHueStreamMessage(s.buf[:0], s.areaID, s.channelIDs, s.segment, s.seq)
	s.seq++
	if _, err := s.conn.Write(s.buf); err != nil {
		return fmt.Errorf("writing to DTLS: %w", err)
	}
	return nil
}

// Close closes the DTLS connection.
func (s *Streamer) Close() error {
	return s.conn.Close()
}

// segmentColors fills dst with the mean colors of len(dst) contiguous,
// near-equal segments of colors. Segments that would be empty, when there
// are more channels than lights, reuse the light at their position.
func segmentColors(dst, colors []Color) {
	n, c := len(colors), len(dst)
	if n == 0 {
		for i := range dst {
			dst[i] = Color{}
		}
		return
	}
	for i := range dst {
		lo, hi := n*i/c, n*(i+1)/c
		if hi <= lo {
			dst[i] = colors[lo]
			continue
		}
		var r, g, b int
		for _, col := range colors[lo:hi] {
			r += int(col.R)
			g += int(col.G)
			b += int(col.B)
		}
		k := hi - lo
		dst[i] = Color{R: uint8(r / k), G: uint8(g / k), B: uint8(b / k)}
	}
}

// BuildHueStreamMessage appends a HueStream v2 message with one color per
// channel to dst. colors[i] is sent on channelIDs[i]; channels without a
// color are sent black.
func BuildHueStreamMessage(dst []byte, areaID string, channelIDs []uint8, colors []Color, seq uint8) []byte {
	dst = slices.Grow(dst, hueHeaderSize+hueChannelBytes*len(channelIDs))

	var hdr [hueHeaderSize]byte
	copy(hdr[0:9], "HueStream")
	hdr[9] = 0x02  // major version
	hdr[10] = 0x00 // minor version
	hdr[11] = seq
	hdr[14] = 0x00 // color space: RGB
	copy(hdr[16:], areaID)
	dst = append(dst, hdr[:]...)

	for i, ch := range channelIDs {
		var c Color
		if i < len(colors) {
			c = colors[i]
		}
		// 8-bit to 16-bit
		r16 := uint16(c.R) * 257
		g16 := uint16(c.G) * 257
		b16 := uint16(c.B) * 257
		dst = append(dst, ch,
			byte(r16>>8), byte(r16),
			byte(g16>>8), byte(g16),
			byte(b16>>8), byte(b16))
	}
	return dst
}
