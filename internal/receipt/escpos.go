package receipt

import "bytes"

// ESC/POS control bytes
const (
	esc byte = 0x1B
	gs  byte = 0x1D
)

type escposBuilder struct {
	buf   bytes.Buffer
	table map[rune]byte
}

func newESCPOSBuilder(table map[rune]byte) *escposBuilder {
	return &escposBuilder{table: table}
}

func (b *escposBuilder) init() {
	b.buf.Write([]byte{esc, '@'})
	// ESC t 19 selects code page 858 (Latin-1 with euro) on Epson firmware.
	b.buf.Write([]byte{esc, 't', 19})
}

func (b *escposBuilder) alignCenter() { b.buf.Write([]byte{esc, 'a', 1}) }
func (b *escposBuilder) alignLeft()   { b.buf.Write([]byte{esc, 'a', 0}) }

func (b *escposBuilder) bold(on bool) {
	if on {
		b.buf.Write([]byte{esc, 'E', 1})
	} else {
		b.buf.Write([]byte{esc, 'E', 0})
	}
}

func (b *escposBuilder) doubleSize(on bool) {
	if on {
		b.buf.Write([]byte{gs, '!', 0x11})
	} else {
		b.buf.Write([]byte{gs, '!', 0x00})
	}
}

func (b *escposBuilder) text(s string) {
	b.buf.Write(encode(s, b.table))
	b.buf.WriteByte('\n')
}

func (b *escposBuilder) feed(n int) {
	b.buf.Write([]byte{esc, 'd', byte(n)})
}

// qr emits the native ESC/POS 2D symbol commands (GS ( k function group).
// The printer renders the code itself, so the payload goes over the wire as
// plain bytes.
func (b *escposBuilder) qr(url string) error {
	data := []byte(url)

	// Function 165: select model 2
	b.buf.Write([]byte{gs, '(', 'k', 4, 0, 49, 65, 50, 0})
	// Function 167: module size 6 dots
	b.buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 67, 6})
	// Function 169: error correction level M
	b.buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 69, 49})
	// Function 180: store data
	n := len(data) + 3
	b.buf.Write([]byte{gs, '(', 'k', byte(n & 0xFF), byte(n >> 8), 49, 80, 48})
	b.buf.Write(data)
	// Function 181: print
	b.buf.Write([]byte{gs, '(', 'k', 3, 0, 49, 81, 48})

	return nil
}

func (b *escposBuilder) cut() {
	// partial cut with feed
	b.buf.Write([]byte{gs, 'V', 66, 0})
}

func (b *escposBuilder) bytes() []byte {
	return b.buf.Bytes()
}
