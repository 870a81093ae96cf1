package render

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Alignment values for ESC a.
const (
	alignLeft   = 0
	alignCenter = 1
	alignRight  = 2
)

// Command builds an ESC/POS byte stream. Text is encoded to code page 437
// with unsupported runes replaced, since the common thermal mechanisms
// choke on raw UTF-8.
type Command struct {
	buf bytes.Buffer
	enc *encoding.Encoder
}

func NewCommand() *Command {
	return &Command{
		enc: encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder()),
	}
}

// Init resets the printer state.
func (c *Command) Init() *Command {
	c.buf.Write([]byte{0x1b, 0x40})
	return c
}

// Align sets justification for subsequent lines.
func (c *Command) Align(a int) *Command {
	c.buf.Write([]byte{0x1b, 0x61, byte(a)})
	return c
}

// Bold toggles emphasis.
func (c *Command) Bold(on bool) *Command {
	v := byte(0)
	if on {
		v = 1
	}
	c.buf.Write([]byte{0x1b, 0x45, v})
	return c
}

// DoubleSize toggles double width+height characters.
func (c *Command) DoubleSize(on bool) *Command {
	v := byte(0)
	if on {
		v = 0x11
	}
	c.buf.Write([]byte{0x1d, 0x21, v})
	return c
}

// Line prints one encoded text line followed by a line feed.
func (c *Command) Line(text string) *Command {
	enc, err := c.enc.String(text)
	if err != nil {
		enc = text // ReplaceUnsupported should prevent this
	}
	c.buf.WriteString(enc)
	c.buf.WriteByte(0x0a)
	return c
}

// Feed advances n lines.
func (c *Command) Feed(n int) *Command {
	if n < 0 {
		n = 0
	}
	c.buf.Write([]byte{0x1b, 0x64, byte(n)})
	return c
}

// Cut performs a partial cut.
func (c *Command) Cut() *Command {
	c.buf.Write([]byte{0x1d, 0x56, 0x42, 0x00})
	return c
}

// Bytes returns the accumulated command stream.
func (c *Command) Bytes() []byte {
	return c.buf.Bytes()
}
