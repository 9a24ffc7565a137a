// Package resources renders the tray status icons.
package resources

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"

	"github.com/jenkinstray/jenkinstray/internal/connectors"
)

const trayIconSize = 32

var stateColors = map[connectors.ConnectionState]color.RGBA{
	connectors.ConnectionStateIdle:       {R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
	connectors.ConnectionStateConnecting: {R: 0xff, G: 0xb3, B: 0x00, A: 0xff},
	connectors.ConnectionStateOpen:       {R: 0x43, G: 0xa0, B: 0x47, A: 0xff},
	connectors.ConnectionStateClosed:     {R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
	connectors.ConnectionStateFailed:     {R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
}

var (
	iconCacheMu sync.Mutex
	iconCache   = map[connectors.ConnectionState][]byte{}
)

// TrayIcon returns the icon bytes for state in the format the platform tray expects.
func TrayIcon(state connectors.ConnectionState) []byte {
	iconCacheMu.Lock()
	defer iconCacheMu.Unlock()
	if icon, ok := iconCache[state]; ok {
		return icon
	}

	raw := StatusPNG(state, trayIconSize)
	if runtime.GOOS == "windows" {
		raw = wrapICO(raw, trayIconSize)
	}
	iconCache[state] = raw

	return raw
}

// StatusPNG draws a filled disc in the state color.
func StatusPNG(state connectors.ConnectionState, size int) []byte {
	fill, ok := stateColors[state]
	if !ok {
		fill = stateColors[connectors.ConnectionStateIdle]
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	center := float64(size-1) / 2
	radius := float64(size)/2 - 1
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(x, y, fill)
			}
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)

	return buf.Bytes()
}

// wrapICO embeds a PNG image in a single-entry ICO container.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	buf.Write([]byte{dim, dim, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 22})
	buf.Write(pngData)

	return buf.Bytes()
}
