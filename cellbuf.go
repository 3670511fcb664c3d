package xml2xl

import (
	"fmt"
	"log"
)

// MaxSheetLinks — предел гиперссылок на лист в xlsx.
const MaxSheetLinks = 65530

// Масштаб окна примечания относительно стандартного размера.
const (
	commentXScale = 3.0
	commentYScale = 0.6
)

// Hyperlink — цель ссылки ячейки. Internal: ссылка внутри книги ('Лист'!A1).
type Hyperlink struct {
	Target   string
	Internal bool
}

// Cell — буферизованная ячейка. Value: nil, string или последовательность
// фрагментов ([]interface{} со строками и Style).
type Cell struct {
	Row, Col int
	Value    interface{}
	Style    Style
	Comment  string
	LinkID   string
	Link     *Hyperlink
}

type cellKey struct{ row, col int }

type cellRange struct{ r1, c1, r2, c2 int }

// CellBuffer накапливает ячейки листа до финальной записи: значения
// перезаписываются, стили только дополняются.
type CellBuffer struct {
	cells        map[cellKey]*Cell
	order        []*Cell
	defaultStyle Style
	rowStyles    map[int]Style
	merges       []cellRange
	log          *log.Logger
}

func NewCellBuffer(defaultStyle Style, logger *log.Logger) *CellBuffer {
	if logger == nil {
		logger = log.Default()
	}
	return &CellBuffer{
		cells:        make(map[cellKey]*Cell),
		defaultStyle: ExpandBorders(defaultStyle),
		rowStyles:    make(map[int]Style),
		log:          logger,
	}
}

// Touch создаёт ячейку при первом обращении (со стилем по умолчанию),
// перезаписывает значение, если оно не nil, и вливает style поверх текущего.
func (b *CellBuffer) Touch(row, col int, value interface{}, style Style) *Cell {
	k := cellKey{row, col}
	c, ok := b.cells[k]
	if !ok {
		c = &Cell{Row: row, Col: col, Style: b.defaultStyle.Clone()}
		if c.Style == nil {
			c.Style = Style{}
		}
		b.cells[k] = c
		b.order = append(b.order, c)
	}
	if value != nil {
		c.Value = value
	}
	if style != nil {
		for k, v := range ExpandBorders(style) {
			c.Style[k] = v
		}
	}
	return c
}

// Lookup возвращает ячейку без создания.
func (b *CellBuffer) Lookup(row, col int) (*Cell, bool) {
	c, ok := b.cells[cellKey{row, col}]
	return c, ok
}

func (b *CellBuffer) Len() int { return len(b.order) }

// SetRowStyle задаёт стиль строки; он слабее любого ключа самой ячейки.
func (b *CellBuffer) SetRowStyle(row int, style Style) {
	b.rowStyles[row] = ExpandBorders(style)
}

// Merge запоминает объединение диапазона; применяется при записи.
func (b *CellBuffer) Merge(r1, c1, r2, c2 int) {
	b.merges = append(b.merges, cellRange{r1, c1, r2, c2})
}

// DrawBorder обводит прямоугольник рамкой, дополняя стили крайних ячеек.
func (b *CellBuffer) DrawBorder(r1, c1, r2, c2 int, btype interface{}, color string) {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	side := func(name string) Style {
		return Style{name: btype, name + "_color": color}
	}
	for col := c1; col <= c2; col++ {
		b.Touch(r1, col, nil, side("top"))
		b.Touch(r2, col, nil, side("bottom"))
	}
	for row := r1; row <= r2; row++ {
		b.Touch(row, c1, nil, side("left"))
		b.Touch(row, c2, nil, side("right"))
	}
}

// Flush пишет все ячейки листа в бэкенд в порядке первого обращения.
func (b *CellBuffer) Flush(sheet string, w Backend, pool *StylePool) error {
	links := 0
	for _, c := range b.order {
		st := c.Style
		if rs, ok := b.rowStyles[c.Row]; ok {
			st = rs.Merge(c.Style)
		}
		h, err := pool.Handle(st)
		if err != nil {
			return fmt.Errorf("ячейка (%d,%d): %w", c.Row, c.Col, err)
		}
		link := c.Link
		if link != nil {
			links++
			if links == MaxSheetLinks {
				b.log.Printf("⚠️ Лист %s: превышено %d ссылок на лист, остальные будут записаны без ссылок", sheet, MaxSheetLinks)
			}
			if links > MaxSheetLinks {
				link = nil
			}
		}
		if err := b.writeCell(sheet, c, link, h, w); err != nil {
			return fmt.Errorf("ячейка (%d,%d): %w", c.Row, c.Col, err)
		}
		if c.Comment != "" {
			if err := w.WriteComment(sheet, c.Row, c.Col, c.Comment, commentXScale, commentYScale); err != nil {
				return fmt.Errorf("примечание (%d,%d): %w", c.Row, c.Col, err)
			}
		}
	}
	for _, m := range b.merges {
		if err := w.MergeRange(sheet, m.r1, m.c1, m.r2, m.c2); err != nil {
			return fmt.Errorf("объединение (%d,%d)-(%d,%d): %w", m.r1, m.c1, m.r2, m.c2, err)
		}
	}
	return nil
}

func (b *CellBuffer) writeCell(sheet string, c *Cell, link *Hyperlink, h int, w Backend) error {
	if link != nil {
		return w.WriteLink(sheet, c.Row, c.Col, *link, c.Value, h)
	}
	runs, ok := c.Value.([]interface{})
	if !ok {
		return w.WriteValue(sheet, c.Row, c.Col, c.Value, h)
	}
	opt, dropped := OptimizeRuns(runs)
	if dropped > 0 {
		b.log.Printf("⚠️ Ячейка (%d,%d) листа %s: последовательность заканчивается стилем, стиль отброшен: %v", c.Row, c.Col, sheet, runs)
	}
	if !hasStyle(opt) {
		return w.WriteValue(sheet, c.Row, c.Col, runText(opt), h)
	}
	return w.WriteRich(sheet, c.Row, c.Col, opt, h)
}
