package xml2xl

import (
	"bytes"
	"fmt"
	"log"
	"strings"
)

type memCell struct {
	Value   interface{}
	Rich    []interface{}
	Link    *Hyperlink
	Style   int
	Comment string
	XScale  float64
	YScale  float64
}

type memColumn struct {
	Width *float64
	Style int
}

// memBackend записывает всё, что ему передали, для проверок в тестах.
type memBackend struct {
	styles  []Style
	sheets  []string
	cells   map[string]map[[2]int]*memCell
	columns map[string]map[int]memColumn
	merges  map[string][][4]int
	zoom    map[string]float64
	active  string
	filters map[string][4]int
	freeze  map[string][2]int
	props   map[string]string
	calls   int
}

func newMemBackend() *memBackend {
	return &memBackend{
		cells:   make(map[string]map[[2]int]*memCell),
		columns: make(map[string]map[int]memColumn),
		merges:  make(map[string][][4]int),
		zoom:    make(map[string]float64),
		filters: make(map[string][4]int),
		freeze:  make(map[string][2]int),
	}
}

func (m *memBackend) cell(sheet string, row, col int) *memCell {
	if m.cells[sheet] == nil {
		m.cells[sheet] = make(map[[2]int]*memCell)
	}
	c, ok := m.cells[sheet][[2]int{row, col}]
	if !ok {
		c = &memCell{}
		m.cells[sheet][[2]int{row, col}] = c
	}
	return c
}

func (m *memBackend) get(sheet string, row, col int) *memCell {
	return m.cells[sheet][[2]int{row, col}]
}

func (m *memBackend) style(h int) Style {
	if h == 0 {
		return nil
	}
	return m.styles[h-1]
}

func (m *memBackend) NewStyle(s Style) (int, error) {
	m.calls++
	m.styles = append(m.styles, s.Clone())
	return len(m.styles), nil
}

func (m *memBackend) AddSheet(name string) error {
	m.calls++
	for _, s := range m.sheets {
		if s == name {
			return fmt.Errorf("лист %q уже есть", name)
		}
	}
	m.sheets = append(m.sheets, name)
	return nil
}

func (m *memBackend) WriteValue(sheet string, row, col int, value interface{}, style int) error {
	m.calls++
	c := m.cell(sheet, row, col)
	c.Value, c.Style = value, style
	return nil
}

func (m *memBackend) WriteRich(sheet string, row, col int, runs []interface{}, style int) error {
	m.calls++
	c := m.cell(sheet, row, col)
	c.Rich, c.Style = runs, style
	return nil
}

func (m *memBackend) WriteLink(sheet string, row, col int, link Hyperlink, value interface{}, style int) error {
	m.calls++
	c := m.cell(sheet, row, col)
	c.Value, c.Style = value, style
	l := link
	c.Link = &l
	return nil
}

func (m *memBackend) WriteComment(sheet string, row, col int, text string, xScale, yScale float64) error {
	m.calls++
	c := m.cell(sheet, row, col)
	c.Comment, c.XScale, c.YScale = text, xScale, yScale
	return nil
}

func (m *memBackend) SetColumn(sheet string, col int, width *float64, style int) error {
	m.calls++
	if m.columns[sheet] == nil {
		m.columns[sheet] = make(map[int]memColumn)
	}
	m.columns[sheet][col] = memColumn{Width: width, Style: style}
	return nil
}

func (m *memBackend) SetZoom(sheet string, zoom float64) error {
	m.calls++
	m.zoom[sheet] = zoom
	return nil
}

func (m *memBackend) Activate(sheet string) error {
	m.calls++
	m.active = sheet
	return nil
}

func (m *memBackend) AutoFilter(sheet string, r1, c1, r2, c2 int) error {
	m.calls++
	m.filters[sheet] = [4]int{r1, c1, r2, c2}
	return nil
}

func (m *memBackend) FreezePanes(sheet string, row, col int) error {
	m.calls++
	m.freeze[sheet] = [2]int{row, col}
	return nil
}

func (m *memBackend) MergeRange(sheet string, r1, c1, r2, c2 int) error {
	m.calls++
	m.merges[sheet] = append(m.merges[sheet], [4]int{r1, c1, r2, c2})
	return nil
}

func (m *memBackend) SetProperties(props map[string]string) error {
	m.calls++
	m.props = props
	return nil
}

func (m *memBackend) Save(path string) error { return nil }

// testLogger возвращает логгер, пишущий в буфер.
func testLogger() (*log.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return log.New(&buf, "", 0), &buf
}

func countLines(buf *bytes.Buffer, substr string) int {
	n := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
