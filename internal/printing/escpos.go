// internal/printing/escpos.go
package printing

import (
	"bytes"
	"strings"

	"terminal-service/internal/model"
)

// ESC/POS command bytes shared by the thermal printers this service drives
var (
	cmdInitialize    = []byte{0x1B, 0x40}             // ESC @
	cmdStatusRequest = []byte{0x10, 0x04, 0x01}       // DLE EOT 1
	cmdBoldOn        = []byte{0x1B, 0x45, 0x01}       // ESC E 1
	cmdBoldOff       = []byte{0x1B, 0x45, 0x00}       // ESC E 0
	cmdSizeNormal    = []byte{0x1D, 0x21, 0x00}       // GS ! 0
	cmdSizeDouble    = []byte{0x1D, 0x21, 0x30}       // GS ! 48
	cmdAlignLeft     = []byte{0x1B, 0x61, 0x00}       // ESC a 0
	cmdAlignCenter   = []byte{0x1B, 0x61, 0x01}       // ESC a 1
	cmdAlignRight    = []byte{0x1B, 0x61, 0x02}       // ESC a 2
	cmdLineFeed      = []byte{0x0A}                   // LF
	cmdFeedLines     = []byte{0x1B, 0x64}             // ESC d + n
	cmdWidth58mm     = []byte{0x1D, 0x57, 0x40, 0x01} // GS W 320
	cmdWidth80mm     = []byte{0x1D, 0x57, 0x00, 0x02} // GS W 512
	cmdCutPartial    = []byte{0x1D, 0x56, 0x01}       // GS V 1
)

// lineWidth returns the printable character count for a paper profile
func lineWidth(profile model.PaperProfile) int {
	if profile == model.Paper58mm {
		return 32
	}
	return 48
}

// Document builds an ESC/POS print payload for a given paper profile
type Document struct {
	buf     bytes.Buffer
	profile model.PaperProfile
}

// NewDocument starts a document with the printer initialized for the paper
// profile. An empty profile falls back to 80mm.
func NewDocument(profile model.PaperProfile) *Document {
	if profile == "" {
		profile = model.Paper80mm
	}
	d := &Document{profile: profile}
	d.buf.Write(cmdInitialize)
	if profile == model.Paper58mm {
		d.buf.Write(cmdWidth58mm)
	} else {
		d.buf.Write(cmdWidth80mm)
	}
	return d
}

// Title prints a centered double-size bold line
func (d *Document) Title(text string) *Document {
	d.buf.Write(cmdAlignCenter)
	d.buf.Write(cmdSizeDouble)
	d.buf.Write(cmdBoldOn)
	d.buf.WriteString(text)
	d.buf.Write(cmdLineFeed)
	d.buf.Write(cmdBoldOff)
	d.buf.Write(cmdSizeNormal)
	d.buf.Write(cmdAlignLeft)
	return d
}

// Line prints a left-aligned text line
func (d *Document) Line(text string) *Document {
	d.buf.WriteString(text)
	d.buf.Write(cmdLineFeed)
	return d
}

// Pair prints a label on the left and a value flush right on the same line
func (d *Document) Pair(label, value string) *Document {
	width := lineWidth(d.profile)
	gap := width - len(label) - len(value)
	if gap < 1 {
		gap = 1
	}
	d.buf.WriteString(label)
	d.buf.WriteString(strings.Repeat(" ", gap))
	d.buf.WriteString(value)
	d.buf.Write(cmdLineFeed)
	return d
}

// Divider prints a full-width rule
func (d *Document) Divider() *Document {
	d.buf.WriteString(strings.Repeat("-", lineWidth(d.profile)))
	d.buf.Write(cmdLineFeed)
	return d
}

// Centered prints a centered text line
func (d *Document) Centered(text string) *Document {
	d.buf.Write(cmdAlignCenter)
	d.buf.WriteString(text)
	d.buf.Write(cmdLineFeed)
	d.buf.Write(cmdAlignLeft)
	return d
}

// RightAligned prints a right-aligned text line
func (d *Document) RightAligned(text string) *Document {
	d.buf.Write(cmdAlignRight)
	d.buf.WriteString(text)
	d.buf.Write(cmdLineFeed)
	d.buf.Write(cmdAlignLeft)
	return d
}

// Feed advances the paper by n lines
func (d *Document) Feed(n int) *Document {
	if n < 0 {
		n = 0
	}
	if n > 255 {
		n = 255
	}
	d.buf.Write(cmdFeedLines)
	d.buf.WriteByte(byte(n))
	return d
}

// Cut feeds past the tear bar and performs a partial cut
func (d *Document) Cut() *Document {
	d.Feed(4)
	d.buf.Write(cmdCutPartial)
	return d
}

// Bytes returns the assembled payload
func (d *Document) Bytes() []byte {
	return d.buf.Bytes()
}
