package receipt

import (
	"bytes"

	qrcode "github.com/skip2/go-qrcode"
)

// starBuilder emits Star Line Mode commands. The Star units in the field have
// no native 2D symbol support, so the QR code is rasterised host-side and
// sent as graphics.
type starBuilder struct {
	buf   bytes.Buffer
	table map[rune]byte
}

func newStarBuilder(table map[rune]byte) *starBuilder {
	return &starBuilder{table: table}
}

func (b *starBuilder) init() {
	b.buf.Write([]byte{esc, '@'})
	// ESC GS t 4 selects code page 858 on Star firmware.
	b.buf.Write([]byte{esc, gs, 't', 4})
}

func (b *starBuilder) alignCenter() { b.buf.Write([]byte{esc, gs, 'a', 1}) }
func (b *starBuilder) alignLeft()   { b.buf.Write([]byte{esc, gs, 'a', 0}) }

func (b *starBuilder) bold(on bool) {
	if on {
		b.buf.Write([]byte{esc, 'E'})
	} else {
		b.buf.Write([]byte{esc, 'F'})
	}
}

func (b *starBuilder) doubleSize(on bool) {
	if on {
		b.buf.Write([]byte{esc, 'i', 1, 1})
	} else {
		b.buf.Write([]byte{esc, 'i', 0, 0})
	}
}

func (b *starBuilder) text(s string) {
	b.buf.Write(encode(s, b.table))
	b.buf.WriteByte('\n')
}

func (b *starBuilder) feed(n int) {
	for i := 0; i < n; i++ {
		b.buf.WriteByte('\n')
	}
}

// qr rasterises the payload with go-qrcode and streams it in Star raster
// mode, three printer dots per module. go-qrcode output is deterministic for
// a fixed payload and error level, which keeps the whole receipt
// byte-identical across renders.
func (b *starBuilder) qr(url string) error {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return err
	}
	bitmap := code.Bitmap()

	const scale = 3

	// enter raster mode
	b.buf.Write([]byte{esc, '*', 'r', 'A'})

	rowBytes := (len(bitmap)*scale + 7) / 8
	for _, row := range bitmap {
		packed := make([]byte, rowBytes)
		for x, dark := range row {
			if !dark {
				continue
			}
			for s := 0; s < scale; s++ {
				bit := x*scale + s
				packed[bit/8] |= 0x80 >> (bit % 8)
			}
		}
		for s := 0; s < scale; s++ {
			b.buf.WriteByte('b')
			b.buf.WriteByte(byte(rowBytes & 0xFF))
			b.buf.WriteByte(byte(rowBytes >> 8))
			b.buf.Write(packed)
		}
	}

	// quit raster mode
	b.buf.Write([]byte{esc, '*', 'r', 'B'})

	return nil
}

func (b *starBuilder) cut() {
	b.buf.Write([]byte{esc, 'd', 2})
}

func (b *starBuilder) bytes() []byte {
	return b.buf.Bytes()
}
