package receipt

// defaultCharTable maps locale characters onto the single-byte code page the
// kitchen printers are configured with (CP858: CP437 plus the euro sign).
// This is a fixed substitution table, not a generic transcoder: the printer
// firmware understands exactly one byte per glyph and nothing else.
var defaultCharTable = map[rune]byte{
	'ä': 0x84, 'Ä': 0x8E,
	'ö': 0x94, 'Ö': 0x99,
	'ü': 0x81, 'Ü': 0x9A,
	'ß': 0xE1,
	'é': 0x82, 'è': 0x8A, 'ê': 0x88,
	'à': 0x85, 'â': 0x83,
	'ç': 0x87,
	'ñ': 0xA4, 'Ñ': 0xA5,
	'°': 0xF8,
	'€': 0xD5,
}

// encode re-encodes a UTF-8 string into printer bytes. ASCII passes through,
// table entries substitute, anything else degrades to '?' rather than feeding
// the printer multi-byte garbage.
func encode(s string, table map[rune]byte) []byte {
	if table == nil {
		table = defaultCharTable
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x80:
			out = append(out, byte(r))
		default:
			if b, ok := table[r]; ok {
				out = append(out, b)
			} else {
				out = append(out, '?')
			}
		}
	}
	return out
}
