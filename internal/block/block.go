package block

// Document is a source file split into note blocks.
type Document struct {
	Title  string  // From metadata or filename
	Blocks []Block // In source order
}

// Block is the raw text of one section: a header line followed by
// information lines, joined with '\n'.
type Block struct {
	Text string
	Line int // Source line of the header (paragraph number for DOCX); 0 if unknown
}

// Append adds a block, ignoring empty text.
func (d *Document) Append(text string, line int) {
	if text == "" {
		return
	}
	d.Blocks = append(d.Blocks, Block{Text: text, Line: line})
}
