package xml2xl

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Шаблон описывает, откуда брать данные исходного документа, куда их
// класть на листе и как оформлять:
//
//	{"formats": {"DEFAULT": {...}, "имя": {...}},
//	 "sheets": [{"name": "...", "row": "+1", "entries": [...]}, ...]}
//
// Поддерживаются JSON и YAML.

// Template — разобранный и проверенный шаблон.
type Template struct {
	Formats map[string]Style
	Default Style
	Sheets  []*SheetDef
}

// SheetSelector — xml_select_sheet: лист на каждый узел Path, имя листа —
// текст NamePath внутри узла.
type SheetSelector struct {
	Path     string
	NamePath string
}

// SheetDef — описание листа; Root — сама запись листа.
type SheetDef struct {
	Name        string
	Root        *Entry
	Columns     []*ColumnFormat
	Autofilter  bool
	Active      bool
	Zoom        float64
	SelectSheet *SheetSelector
	FilterSheet string
}

// ColumnFormat — элемент column_formats. Index < 0 — столбец по порядку
// заголовков; Widths — устаревший список column_widths.
type ColumnFormat struct {
	Index            int
	Header           string
	Width            *float64
	CellFormat       Style
	HeaderFormat     Style
	HideUnlessSelect string
	Comment          string
	Span             *Span
	NoCommit         bool
	Widths           []float64
}

var columnFormatKeys = map[string]bool{
	"header": true, "width": true, "cell_format": true, "format": true,
	"hide_unless_select": true, "column": true, "column_widths": true,
	"comment": true, "span": true, "no_commit": true, "cfg": true, "ignore": true,
}

// LoadTemplate читает шаблон (.json, .yaml, .yml) и применяет тег фильтра.
func LoadTemplate(path, filterTag string, logger *log.Logger) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение шаблона: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".json":
	default:
		return nil, fmt.Errorf("неизвестный формат шаблона %q (ожидается .json, .yaml или .yml)", path)
	}
	t, err := ParseTemplate(data, format, filterTag, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTemplate разбирает шаблон в формате "json" или "yaml".
func ParseTemplate(data []byte, format, filterTag string, logger *log.Logger) (*Template, error) {
	if logger == nil {
		logger = log.Default()
	}
	var raw interface{}
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("разбор YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("разбор JSON: %w", err)
		}
	}
	root, ok := copyWithFilter(raw, strings.TrimSpace(filterTag)).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: шаблон должен быть словарём", ErrMalformedEntry)
	}

	t := &Template{Formats: make(map[string]Style)}
	formats, ok := root["formats"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: formats", ErrMissingField)
	}
	for name, v := range formats {
		st, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: формат %q должен быть словарём", ErrMalformedEntry, name)
		}
		t.Formats[name] = Style(st)
	}
	def, ok := t.Formats["DEFAULT"]
	if !ok {
		return nil, fmt.Errorf("%w: formats.DEFAULT", ErrMissingField)
	}
	t.Default = def

	sheets, ok := root["sheets"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: sheets", ErrMissingField)
	}
	n := &normalizer{formats: t.Formats, onWarn: logger.Printf}
	for i, raw := range sheets {
		sd, err := n.sheet(raw, i)
		if err != nil {
			return nil, err
		}
		t.Sheets = append(t.Sheets, sd)
	}
	return t, nil
}

func (n *normalizer) sheet(raw interface{}, idx int) (*SheetDef, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: sheets[%d] должен быть словарём", ErrMalformedEntry, idx)
	}
	sd := &SheetDef{Zoom: 100}
	where := fmt.Sprintf("sheets[%d]", idx)
	name, hasName, err := optString(m, "name", where)
	if err != nil {
		return nil, err
	}
	if hasName {
		sd.Name = name
		where = fmt.Sprintf("sheet(%s)", name)
	}

	if v, ok := m["xml_select_sheet"]; ok {
		sel, ok := v.(map[string]interface{})
		path, _ := sel["select_path"].(string)
		namePath, _ := sel["select_name"].(string)
		if !ok || path == "" || namePath == "" {
			return nil, entryErr(where, fmt.Errorf("%w: xml_select_sheet требует select_path и select_name", ErrMalformedEntry))
		}
		sd.SelectSheet = &SheetSelector{Path: path, NamePath: namePath}
	}
	if sd.FilterSheet, _, err = optString(m, "xml_filter_sheet", where); err != nil {
		return nil, err
	}
	if sd.SelectSheet != nil && sd.FilterSheet != "" {
		return nil, entryErr(where, fmt.Errorf("%w: xml_select_sheet и xml_filter_sheet взаимоисключающие", ErrMalformedEntry))
	}
	if !hasName && sd.SelectSheet == nil && sd.FilterSheet == "" {
		return nil, entryErr(where, fmt.Errorf("%w: name", ErrMissingField))
	}

	sd.Active = truthy(m["active"])
	sd.Autofilter = truthy(m["autofilter"])
	if v, ok := m["zoom"]; ok {
		z, ok := toFloat(v)
		if !ok || z < 10 || z > 400 {
			return nil, entryErr(where, fmt.Errorf("%w: zoom должен быть числом 10..400, получено %v", ErrMalformedEntry, v))
		}
		sd.Zoom = z
	}

	if v, ok := m["column_formats"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return nil, entryErr(where, fmt.Errorf("%w: column_formats должен быть списком", ErrMalformedEntry))
		}
		for i, raw := range list {
			c, err := n.columnFormat(raw, fmt.Sprintf("%s/column_formats[%d]", where, i))
			if err != nil {
				return nil, err
			}
			sd.Columns = append(sd.Columns, c)
		}
	}

	if sd.Root, err = n.entry(m, where, false); err != nil {
		return nil, err
	}
	return sd, nil
}

func (n *normalizer) columnFormat(raw interface{}, where string) (*ColumnFormat, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, entryErr(where, fmt.Errorf("%w: ожидается словарь", ErrMalformedEntry))
	}
	for k := range m {
		if !columnFormatKeys[k] {
			return nil, entryErr(where, fmt.Errorf("%w: %s", ErrUnknownKey, k))
		}
	}
	c := &ColumnFormat{Index: -1}

	if v, ok := m["column_widths"]; ok {
		list, ok := v.([]interface{})
		if !ok {
			return nil, entryErr(where, fmt.Errorf("%w: column_widths должен быть списком", ErrMalformedEntry))
		}
		for _, w := range list {
			f, ok := toFloat(w)
			if !ok {
				return nil, entryErr(where, fmt.Errorf("%w: ширина %v", ErrMalformedEntry, w))
			}
			c.Widths = append(c.Widths, f)
		}
		return c, nil
	}

	if v, ok := m["column"]; ok {
		if _, ok := m["header"]; ok {
			return nil, entryErr(where, fmt.Errorf("%w: column и header нельзя задавать вместе", ErrMalformedEntry))
		}
		idx, ok := toInt(v)
		if !ok || idx < 0 {
			return nil, entryErr(where, fmt.Errorf("%w: column %v", ErrMalformedEntry, v))
		}
		c.Index = idx
	}
	if v, ok := m["header"]; ok && v != nil {
		c.Header = toString(v)
	}
	if v, ok := m["width"]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok || f < 0 {
			return nil, entryErr(where, fmt.Errorf("%w: width %v", ErrMalformedEntry, v))
		}
		c.Width = &f
	}
	var err error
	if c.CellFormat, err = n.resolveFormat(m["cell_format"], where, "cell_format"); err != nil {
		return nil, err
	}
	if c.HeaderFormat, err = n.resolveFormat(m["format"], where, "format"); err != nil {
		return nil, err
	}
	if c.HideUnlessSelect, _, err = optString(m, "hide_unless_select", where); err != nil {
		return nil, err
	}
	if v, ok := m["comment"]; ok && v != nil {
		c.Comment = toString(v)
	}
	if v, ok := m["span"]; ok {
		if c.Span, err = parseSpan(v, where); err != nil {
			return nil, err
		}
	}
	c.NoCommit = truthy(m["no_commit"])
	return c, nil
}
