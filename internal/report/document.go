package report

// Document is a renderer-independent description of a report.
type Document struct {
	Footer string
	Pages  []Page
}

type Page struct {
	Bordered bool
	Blocks   []Block
}

// Block is one of Title, Heading, Rule, Spacer, Paragraph, Table or
// ImageTable.
type Block interface {
	isBlock()
}

type Title struct {
	Text string
}

type Heading struct {
	Text string
}

// Rule is a full-width horizontal line.
type Rule struct{}

type Spacer struct {
	Height float64
}

type Paragraph struct {
	Text   string
	Italic bool
	Size   float64
}

type Column struct {
	Header string
	Width  float64
}

// Table draws a bold caption, a shaded header row and bordered rows.
type Table struct {
	Caption string
	Columns []Column
	Rows    [][]string
}

// ImageRow shows an embedded JPEG or, when Image is nil, the fallback text.
type ImageRow struct {
	Label          string
	Image          []byte
	Fallback       string
	FallbackItalic bool
}

type ImageTable struct {
	Caption string
	Columns []Column
	Rows    []ImageRow
}

func (Title) isBlock()      {}
func (Heading) isBlock()    {}
func (Rule) isBlock()       {}
func (Spacer) isBlock()     {}
func (Paragraph) isBlock()  {}
func (Table) isBlock()      {}
func (ImageTable) isBlock() {}

// Table returns the first table with the given caption.
func (d Document) Table(caption string) (Table, bool) {
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if t, ok := b.(Table); ok && t.Caption == caption {
				return t, true
			}
		}
	}
	return Table{}, false
}

// Value returns the second cell of the first row labelled name.
func (t Table) Value(name string) (string, bool) {
	for _, row := range t.Rows {
		if len(row) > 1 && row[0] == name {
			return row[1], true
		}
	}
	return "", false
}
