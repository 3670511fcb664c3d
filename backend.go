package xml2xl

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Backend — приёмник готовой книги. Координаты 0-based; стиль передаётся
// дескриптором, полученным из NewStyle (0 — без стиля).
type Backend interface {
	NewStyle(s Style) (int, error)
	AddSheet(name string) error
	WriteValue(sheet string, row, col int, value interface{}, style int) error
	WriteRich(sheet string, row, col int, runs []interface{}, style int) error
	WriteLink(sheet string, row, col int, link Hyperlink, value interface{}, style int) error
	WriteComment(sheet string, row, col int, text string, xScale, yScale float64) error
	SetColumn(sheet string, col int, width *float64, style int) error
	SetZoom(sheet string, zoom float64) error
	Activate(sheet string) error
	AutoFilter(sheet string, r1, c1, r2, c2 int) error
	FreezePanes(sheet string, row, col int) error
	MergeRange(sheet string, r1, c1, r2, c2 int) error
	SetProperties(props map[string]string) error
	Save(path string) error
}

// Стандартный размер окна примечания в пикселях (масштаб 1.0).
const (
	commentBaseWidth  = 128
	commentBaseHeight = 74
)

var namedColors = map[string]string{
	"black":   "000000",
	"blue":    "0000FF",
	"brown":   "800000",
	"cyan":    "00FFFF",
	"gray":    "808080",
	"green":   "008000",
	"lime":    "00FF00",
	"magenta": "FF00FF",
	"navy":    "000080",
	"orange":  "FF6600",
	"pink":    "FF00FF",
	"purple":  "800080",
	"red":     "FF0000",
	"silver":  "C0C0C0",
	"white":   "FFFFFF",
	"yellow":  "FFFF00",
}

func colorHex(v interface{}) string {
	s := strings.TrimSpace(toString(v))
	if hex, ok := namedColors[strings.ToLower(s)]; ok {
		return hex
	}
	return strings.TrimPrefix(s, "#")
}

var horizontalAlign = map[string]string{
	"left":             "left",
	"center":           "center",
	"centre":           "center",
	"right":            "right",
	"fill":             "fill",
	"justify":          "justify",
	"center_across":    "centerContinuous",
	"centre_across":    "centerContinuous",
	"distributed":      "distributed",
	"general":          "general",
	"centerContinuous": "centerContinuous",
}

var verticalAlign = map[string]string{
	"top":          "top",
	"vcenter":      "center",
	"vcentre":      "center",
	"center":       "center",
	"bottom":       "bottom",
	"vjustify":     "justify",
	"vdistributed": "distributed",
}

// ExcelBackend пишет книгу через excelize.
type ExcelBackend struct {
	f      *excelize.File
	sheets int
	log    *log.Logger
}

func NewExcelBackend(logger *log.Logger) *ExcelBackend {
	if logger == nil {
		logger = log.Default()
	}
	return &ExcelBackend{f: excelize.NewFile(), log: logger}
}

// File отдаёт книгу excelize (для чтения в тестах и постобработки).
func (b *ExcelBackend) File() *excelize.File { return b.f }

func cellName(row, col int) (string, error) {
	return excelize.CoordinatesToCellName(col+1, row+1)
}

// fontOf собирает шрифт из ключей стиля; nil, если ни одного ключа шрифта нет.
func fontOf(s Style) *excelize.Font {
	var font excelize.Font
	set := false
	for k, v := range s {
		switch k {
		case "bold":
			font.Bold, set = truthy(v), true
		case "italic":
			font.Italic, set = truthy(v), true
		case "underline":
			n, ok := toInt(v)
			if !ok && truthy(v) {
				n = 1
			}
			switch n {
			case 0:
			case 2, 34:
				font.Underline = "double"
			default:
				font.Underline = "single"
			}
			set = true
		case "font_strikeout":
			font.Strike, set = truthy(v), true
		case "font_color":
			font.Color, set = colorHex(v), true
		case "font_name":
			font.Family, set = toString(v), true
		case "font_size":
			if f, ok := toFloat(v); ok {
				font.Size, set = f, true
			}
		case "font_script":
			switch n, _ := toInt(v); n {
			case 1:
				font.VertAlign = "superscript"
			case 2:
				font.VertAlign = "subscript"
			}
			set = true
		}
	}
	if !set {
		return nil
	}
	return &font
}

// excelStyle переводит словарь стиля шаблона в excelize.Style.
func (b *ExcelBackend) excelStyle(s Style) *excelize.Style {
	st := &excelize.Style{Font: fontOf(s)}
	var align excelize.Alignment
	hasAlign := false
	var prot *excelize.Protection
	fillColor := ""
	pattern := 1

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s[k]
		switch k {
		case "bold", "italic", "underline", "font_strikeout", "font_color",
			"font_name", "font_size", "font_script":
		case "left", "right", "top", "bottom":
			n, ok := toInt(v)
			if !ok || n == 0 {
				continue
			}
			color := "000000"
			if c, ok := s[k+"_color"]; ok {
				color = colorHex(c)
			}
			st.Border = append(st.Border, excelize.Border{Type: k, Color: color, Style: n})
		case "left_color", "right_color", "top_color", "bottom_color":
		case "bg_color", "fg_color":
			if fillColor == "" || k == "bg_color" {
				fillColor = colorHex(v)
			}
		case "pattern":
			if n, ok := toInt(v); ok {
				pattern = n
			}
		case "align":
			if h, ok := horizontalAlign[toString(v)]; ok {
				align.Horizontal, hasAlign = h, true
			} else if vv, ok := verticalAlign[toString(v)]; ok {
				align.Vertical, hasAlign = vv, true
			} else {
				b.log.Printf("⚠️ Неизвестное выравнивание %q", toString(v))
			}
		case "valign":
			if vv, ok := verticalAlign[toString(v)]; ok {
				align.Vertical, hasAlign = vv, true
			} else {
				b.log.Printf("⚠️ Неизвестное вертикальное выравнивание %q", toString(v))
			}
		case "text_wrap":
			align.WrapText, hasAlign = truthy(v), true
		case "shrink":
			align.ShrinkToFit, hasAlign = truthy(v), true
		case "indent":
			if n, ok := toInt(v); ok {
				align.Indent, hasAlign = n, true
			}
		case "rotation":
			if n, ok := toInt(v); ok {
				align.TextRotation, hasAlign = n, true
			}
		case "num_format":
			if n, ok := v.(float64); ok && n == float64(int(n)) {
				st.NumFmt = int(n)
			} else if n, ok := v.(int); ok {
				st.NumFmt = n
			} else {
				f := toString(v)
				st.CustomNumFmt = &f
			}
		case "locked", "hidden":
			if prot == nil {
				prot = &excelize.Protection{Locked: true}
			}
			if k == "locked" {
				prot.Locked = truthy(v)
			} else {
				prot.Hidden = truthy(v)
			}
		default:
			b.log.Printf("⚠️ Неизвестное свойство стиля %q игнорируется", k)
		}
	}
	if fillColor != "" && pattern > 0 {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: pattern, Color: []string{fillColor}}
	}
	if hasAlign {
		st.Alignment = &align
	}
	st.Protection = prot
	return st
}

func (b *ExcelBackend) NewStyle(s Style) (int, error) {
	return b.f.NewStyle(b.excelStyle(s))
}

// AddSheet добавляет лист; первый лист переименовывает стандартный "Sheet1".
func (b *ExcelBackend) AddSheet(name string) error {
	b.sheets++
	if b.sheets == 1 {
		return b.f.SetSheetName("Sheet1", name)
	}
	_, err := b.f.NewSheet(name)
	return err
}

func (b *ExcelBackend) setStyle(sheet, cell string, style int) error {
	if style == 0 {
		return nil
	}
	return b.f.SetCellStyle(sheet, cell, cell, style)
}

func (b *ExcelBackend) WriteValue(sheet string, row, col int, value interface{}, style int) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}
	if value != nil {
		if err := b.f.SetCellValue(sheet, cell, valToCell(value)); err != nil {
			return err
		}
	}
	return b.setStyle(sheet, cell, style)
}

func (b *ExcelBackend) WriteRich(sheet string, row, col int, runs []interface{}, style int) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}
	var rich []excelize.RichTextRun
	var font *excelize.Font
	for _, r := range runs {
		if st, ok := asStyle(r); ok {
			font = fontOf(st)
			continue
		}
		rich = append(rich, excelize.RichTextRun{Font: font, Text: toString(r)})
		font = nil
	}
	if err := b.f.SetCellRichText(sheet, cell, rich); err != nil {
		return err
	}
	return b.setStyle(sheet, cell, style)
}

func (b *ExcelBackend) WriteLink(sheet string, row, col int, link Hyperlink, value interface{}, style int) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}
	if value != nil {
		if err := b.f.SetCellValue(sheet, cell, valToCell(value)); err != nil {
			return err
		}
	}
	kind := "External"
	if link.Internal {
		kind = "Location"
	}
	if err := b.f.SetCellHyperLink(sheet, cell, link.Target, kind); err != nil {
		return err
	}
	return b.setStyle(sheet, cell, style)
}

func (b *ExcelBackend) WriteComment(sheet string, row, col int, text string, xScale, yScale float64) error {
	cell, err := cellName(row, col)
	if err != nil {
		return err
	}
	return b.f.AddComment(sheet, excelize.Comment{
		Cell:   cell,
		Text:   text,
		Width:  uint(commentBaseWidth * xScale),
		Height: uint(commentBaseHeight * yScale),
	})
}

func (b *ExcelBackend) SetColumn(sheet string, col int, width *float64, style int) error {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return err
	}
	if width != nil {
		if err := b.f.SetColWidth(sheet, name, name, *width); err != nil {
			return err
		}
	}
	if style != 0 {
		return b.f.SetColStyle(sheet, name, style)
	}
	return nil
}

func (b *ExcelBackend) SetZoom(sheet string, zoom float64) error {
	return b.f.SetSheetView(sheet, 0, &excelize.ViewOptions{ZoomScale: &zoom})
}

func (b *ExcelBackend) Activate(sheet string) error {
	idx, err := b.f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx < 0 {
		return fmt.Errorf("лист %q не найден", sheet)
	}
	b.f.SetActiveSheet(idx)
	return nil
}

func (b *ExcelBackend) AutoFilter(sheet string, r1, c1, r2, c2 int) error {
	from, err := cellName(r1, c1)
	if err != nil {
		return err
	}
	to, err := cellName(r2, c2)
	if err != nil {
		return err
	}
	return b.f.AutoFilter(sheet, from+":"+to, nil)
}

// FreezePanes закрепляет строки выше row и столбцы левее col.
func (b *ExcelBackend) FreezePanes(sheet string, row, col int) error {
	topLeft, err := cellName(row, col)
	if err != nil {
		return err
	}
	pane := "bottomRight"
	switch {
	case col == 0:
		pane = "bottomLeft"
	case row == 0:
		pane = "topRight"
	}
	return b.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      col,
		YSplit:      row,
		TopLeftCell: topLeft,
		ActivePane:  pane,
	})
}

func (b *ExcelBackend) MergeRange(sheet string, r1, c1, r2, c2 int) error {
	from, err := cellName(r1, c1)
	if err != nil {
		return err
	}
	to, err := cellName(r2, c2)
	if err != nil {
		return err
	}
	return b.f.MergeCell(sheet, from, to)
}

// SetProperties записывает свойства документа. Ключи — как в строке
// -p (title, subject, author, company, category, keywords, comments,
// status).
func (b *ExcelBackend) SetProperties(props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	doc := &excelize.DocProperties{}
	app := &excelize.AppProperties{}
	hasApp := false
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := props[k]
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "title":
			doc.Title = v
		case "subject":
			doc.Subject = v
		case "author":
			doc.Creator = v
		case "category":
			doc.Category = v
		case "keywords":
			doc.Keywords = v
		case "comments":
			doc.Description = v
		case "status":
			doc.ContentStatus = v
		case "company":
			app.Company, hasApp = v, true
		default:
			b.log.Printf("⚠️ Неизвестное свойство документа %q игнорируется", k)
		}
	}
	if err := b.f.SetDocProps(doc); err != nil {
		return err
	}
	if hasApp {
		return b.f.SetAppProps(app)
	}
	return nil
}

func (b *ExcelBackend) Save(path string) error {
	if err := b.f.SaveAs(path); err != nil {
		return err
	}
	return b.f.Close()
}
