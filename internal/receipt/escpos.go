package receipt

import "bytes"

// ESC/POS control sequences used by the encoder.
var (
	escInit    = []byte{0x1B, 0x40}       // ESC @
	escFeed    = []byte{0x1B, 0x64}       // ESC d n
	gsCutPart  = []byte{0x1D, 0x56, 0x01} // GS V 1
	newline    = byte('\n')
	maxFeedArg = 255
)

// Encode renders commands as an ESC/POS byte stream. Text is sent as-is;
// characters outside the printer's code page come out as the printer decides.
func Encode(cmds []Command) []byte {
	var buf bytes.Buffer
	buf.Write(escInit)
	for _, c := range cmds {
		switch c.Kind {
		case CommandText:
			buf.WriteString(c.Text)
			buf.WriteByte(newline)
		case CommandFeed:
			n := c.Lines
			if n < 0 {
				n = 0
			}
			if n > maxFeedArg {
				n = maxFeedArg
			}
			buf.Write(escFeed)
			buf.WriteByte(byte(n))
		case CommandCut:
			buf.Write(gsCutPart)
		}
	}
	return buf.Bytes()
}
