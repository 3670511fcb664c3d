package xml2xl

import (
	"fmt"
	"log"
	"sort"
)

// sheetRun — состояние одного листа за прогон: курсор, буфер ячеек,
// форматы столбцов и отложенные запросы ссылок.
type sheetRun struct {
	name string
	def  *SheetDef
	node Node

	cursor  *Cursor
	buf     *CellBuffer
	columns map[int]Style
	widths  map[int]float64
	headers []*Entry

	links    *LinkRegistry
	requests []LinkRequest
	text     Formatter
	log      *log.Logger

	moves int
}

func newSheetRun(name string, def *SheetDef, node Node, tmpl *Template, links *LinkRegistry, text Formatter, logger *log.Logger) *sheetRun {
	return &sheetRun{
		name:    name,
		def:     def,
		node:    node,
		cursor:  NewCursor(0, 0),
		buf:     NewCellBuffer(tmpl.Default, logger),
		columns: make(map[int]Style),
		widths:  make(map[int]float64),
		links:   links,
		text:    text,
		log:     logger,
	}
}

// setupColumns раскладывает column_formats: ширины, форматы ячеек по
// умолчанию и заголовки для "#column_headers".
func (r *sheetRun) setupColumns() error {
	for i, c := range r.def.Columns {
		if c.Widths != nil {
			for icol, w := range c.Widths {
				r.widths[icol] = w
			}
			continue
		}
		icol := c.Index
		header := icol < 0
		if header {
			icol = len(r.headers)
		}
		if c.CellFormat != nil {
			r.columns[icol] = ExpandBorders(c.CellFormat)
		}
		width := c.Width
		if c.HideUnlessSelect != "" {
			found, err := r.node.Find(c.HideUnlessSelect)
			if err != nil {
				return entryErr(fmt.Sprintf("%s/column_formats[%d]", r.def.Root.Where, i), err)
			}
			if len(found) == 0 {
				zero := 0.0
				width = &zero
			}
		}
		if width != nil {
			r.widths[icol] = *width
		}
		if header {
			h := headerEntry(c, fmt.Sprintf("%s/column_formats[%d]", r.def.Root.Where, i))
			if (width != nil && *width == 0) || c.Header == "" {
				h.NoCommit = true
			}
			r.headers = append(r.headers, h)
		}
	}
	return nil
}

// process — фаза 1: вычисление корневой записи листа.
func (r *sheetRun) process() error {
	if err := r.setupColumns(); err != nil {
		return err
	}
	_, err := r.evaluate(r.def.Root, Scope{r.node}, r.cursor, nil, nil)
	return err
}

// flush — фаза 3: столбцы, ячейки, объединения и настройки листа.
func (r *sheetRun) flush(sheet string, w Backend, pool *StylePool) error {
	cols := make(map[int]bool)
	for c := range r.columns {
		cols[c] = true
	}
	for c := range r.widths {
		cols[c] = true
	}
	order := make([]int, 0, len(cols))
	for c := range cols {
		order = append(order, c)
	}
	sort.Ints(order)
	for _, c := range order {
		var width *float64
		if wd, ok := r.widths[c]; ok {
			width = &wd
		}
		h, err := pool.Handle(r.columns[c])
		if err != nil {
			return fmt.Errorf("столбец %d: %w", c, err)
		}
		if err := w.SetColumn(sheet, c, width, h); err != nil {
			return fmt.Errorf("столбец %d: %w", c, err)
		}
	}

	if err := r.buf.Flush(sheet, w, pool); err != nil {
		return err
	}

	if err := w.SetZoom(sheet, r.def.Zoom); err != nil {
		return fmt.Errorf("масштаб: %w", err)
	}
	if r.def.Active {
		if err := w.Activate(sheet); err != nil {
			return fmt.Errorf("активный лист: %w", err)
		}
	}
	if r.def.Autofilter {
		if err := w.AutoFilter(sheet, 0, 0, r.cursor.MaxRow, r.cursor.MaxCol); err != nil {
			return fmt.Errorf("автофильтр: %w", err)
		}
		if err := w.FreezePanes(sheet, 1, 0); err != nil {
			return fmt.Errorf("закрепление: %w", err)
		}
	}
	return nil
}
