package xml2xl

import (
	"fmt"
	"sort"
	"strings"
)

// -----------------------------
// Нормализованная запись шаблона
// -----------------------------

// EntryKind — форма записи, определяется один раз при разборе шаблона.
type EntryKind int

const (
	// EntryLiteral — готовый текст (ключ text).
	EntryLiteral EntryKind = iota
	// EntryQuery — значения из исходного документа (xml) или пустая запись.
	EntryQuery
	// EntryComposite — запись с дочерними записями (entries).
	EntryComposite
)

func (k EntryKind) String() string {
	switch k {
	case EntryLiteral:
		return "literal"
	case EntryQuery:
		return "query"
	case EntryComposite:
		return "composite"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Query — разобранный путь xml с модификаторами:
// "!" — только первый узел, "@" — уникальные значения, "../" — подъём к
// предку, "#attr" — атрибут вместо текста.
type Query struct {
	Path    string
	Attr    string
	HasAttr bool
	Up      int
	First   bool
	Unique  bool
}

// ParseQuery разбирает значение ключа xml.
func ParseQuery(src string) Query {
	var q Query
	path := src
	if strings.HasPrefix(path, "!") {
		q.First, path = true, path[1:]
	}
	if strings.HasPrefix(path, "@") {
		q.Unique, path = true, path[1:]
	}
	for strings.HasPrefix(path, "../") {
		q.Up++
		path = path[3:]
	}
	if i := strings.Index(path, "#"); i >= 0 {
		q.Attr, q.HasAttr = path[i+1:], true
		path = path[:i]
	}
	q.Path = path
	return q
}

// Selector — xml_select дочерней записи: запись размножается по найденным узлам.
type Selector struct {
	Path  string
	First bool
}

type BorderSpec struct {
	Type  interface{}
	Color string
}

type Span struct {
	Rows, Cols int
}

// Entry — неизменяемая запись шаблона после нормализации.
type Entry struct {
	Kind  EntryKind
	Where string

	Text          interface{}
	Query         *Query
	Children      []*Entry
	ColumnHeaders bool
	Select        *Selector

	Row, Col *Delta

	Format     Style
	TextFormat Style

	Prefix, Suffix, Separator interface{}
	Eval                      *Expression
	Formatter                 Formatter

	LinkTo         *string
	LinkToSelector string
	LinkID         string

	Border   *BorderSpec
	Span     *Span
	Comment  string
	NoCommit bool
}

// Placed — запись сама задаёт смещения, её дети пишут в ячейки напрямую.
func (e *Entry) Placed() bool { return e.Row != nil || e.Col != nil }

// entryKeys — полный набор допустимых ключей записи (включая ключи листа,
// которые допустимы на корневой записи).
var entryKeys = map[string]bool{
	"name": true, "format": true, "ignore": true, "comment": true, "row": true,
	"col": true, "xml": true, "xml_select": true, "entries": true, "prefix": true,
	"suffix": true, "separator": true, "active": true, "autofilter": true,
	"column_formats": true, "text": true, "sfmt": true, "tfmt": true, "eval": true,
	"link_to": true, "link_to_selector": true, "link_id": true, "draw_border": true,
	"zoom": true, "span": true, "cfg": true, "xml_select_sheet": true,
	"xml_filter_sheet": true, "no_commit": true, "visibility_filter": true,
}

// columnHeadersMarker — значение entries, разворачиваемое в заголовки столбцов.
const columnHeadersMarker = "#column_headers"

type normalizer struct {
	formats map[string]Style
	onWarn  func(format string, args ...interface{})
}

// resolveFormat: строка — имя из formats, словарь — формат как есть.
func (n *normalizer) resolveFormat(v interface{}, where, key string) (Style, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case string:
		st, ok := n.formats[vv]
		if !ok {
			return nil, entryErr(where, fmt.Errorf("%w %q в ключе %s", ErrUnknownFormat, vv, key))
		}
		return st, nil
	case map[string]interface{}:
		return Style(vv), nil
	default:
		return nil, entryErr(where, fmt.Errorf("%w: %s должен быть именем формата или словарём, получено %T", ErrMalformedEntry, key, v))
	}
}

func optString(m map[string]interface{}, key, where string) (string, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, entryErr(where, fmt.Errorf("%w: %s должен быть строкой, получено %T", ErrMalformedEntry, key, v))
	}
	return s, true, nil
}

// entry нормализует одну запись. Строка или список — сокращение для
// {"text": ...}. xml_select допустим только у элементов списка entries.
func (n *normalizer) entry(raw interface{}, where string, child bool) (*Entry, error) {
	var m map[string]interface{}
	switch v := raw.(type) {
	case map[string]interface{}:
		m = v
	case string, []interface{}:
		if !child {
			return nil, entryErr(where, fmt.Errorf("%w: ожидается словарь", ErrMalformedEntry))
		}
		m = map[string]interface{}{"text": v}
	default:
		return nil, entryErr(where, fmt.Errorf("%w: ожидается словарь, получено %T", ErrMalformedEntry, raw))
	}

	var unknown []string
	for k := range m {
		if !entryKeys[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, entryErr(where, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", ")))
	}

	e := &Entry{Where: where}
	_, hasText := m["text"]
	_, hasXML := m["xml"]
	_, hasEntries := m["entries"]
	switch {
	case hasText && (hasXML || hasEntries):
		return nil, entryErr(where, fmt.Errorf("%w: text нельзя сочетать с xml или entries", ErrMalformedEntry))
	case hasText:
		e.Kind, e.Text = EntryLiteral, m["text"]
	case hasEntries:
		e.Kind = EntryComposite
	default:
		e.Kind = EntryQuery
	}

	if sel, ok := m["xml_select"]; ok {
		if !child {
			return nil, entryErr(where, fmt.Errorf("%w: xml_select допустим только внутри списка entries", ErrMalformedEntry))
		}
		path, ok := sel.(string)
		if !ok {
			return nil, entryErr(where, fmt.Errorf("%w: xml_select должен быть строкой, получено %T", ErrMalformedEntry, sel))
		}
		s := &Selector{Path: path}
		if strings.HasPrefix(path, "!") {
			s.First, s.Path = true, path[1:]
		}
		e.Select = s
	}

	if src, ok, err := optString(m, "xml", where); err != nil {
		return nil, err
	} else if ok {
		q := ParseQuery(src)
		e.Query = &q
	}

	for _, key := range []string{"row", "col"} {
		v, ok := m[key]
		if !ok {
			continue
		}
		d, err := ParseDelta(v)
		if err != nil {
			return nil, entryErr(where, fmt.Errorf("%s: %w", key, err))
		}
		if key == "row" {
			e.Row = d
		} else {
			e.Col = d
		}
	}

	var err error
	if e.Format, err = n.resolveFormat(m["format"], where, "format"); err != nil {
		return nil, err
	}
	if e.TextFormat, err = n.resolveFormat(m["tfmt"], where, "tfmt"); err != nil {
		return nil, err
	}

	e.Prefix, e.Suffix, e.Separator = m["prefix"], m["suffix"], m["separator"]
	if e.Query != nil && e.Query.Unique && e.Separator == nil {
		e.Separator = "|"
	}

	if src, _, err := optString(m, "eval", where); err != nil {
		return nil, err
	} else if e.Eval, err = CompileExpression(src); err != nil {
		return nil, entryErr(where, err)
	}

	if name, ok, err := optString(m, "sfmt", where); err != nil {
		return nil, err
	} else if ok {
		if e.Formatter, err = LookupFormatter(name); err != nil {
			return nil, entryErr(where, err)
		}
	}

	if s, ok, err := optString(m, "link_to", where); err != nil {
		return nil, err
	} else if ok {
		e.LinkTo = &s
	}
	if e.LinkToSelector, _, err = optString(m, "link_to_selector", where); err != nil {
		return nil, err
	}
	if e.LinkID, _, err = optString(m, "link_id", where); err != nil {
		return nil, err
	}

	if b, ok := m["draw_border"]; ok {
		if e.Border, err = parseBorder(b, where); err != nil {
			return nil, err
		}
	}
	if s, ok := m["span"]; ok {
		if e.Span, err = parseSpan(s, where); err != nil {
			return nil, err
		}
	}
	if c, ok := m["comment"]; ok && c != nil {
		e.Comment = toString(c)
	}
	e.NoCommit = truthy(m["no_commit"])
	if _, ok := m["visibility_filter"]; ok && n.onWarn != nil {
		n.onWarn("⚠️ %s: visibility_filter не поддерживается и игнорируется", where)
	}

	if hasEntries {
		switch v := m["entries"].(type) {
		case string:
			if v != columnHeadersMarker {
				return nil, entryErr(where, fmt.Errorf("%w: entries должен быть списком или %q", ErrMalformedEntry, columnHeadersMarker))
			}
			e.ColumnHeaders = true
		case []interface{}:
			for i, raw := range v {
				ch, err := n.entry(raw, fmt.Sprintf("%s/entries[%d]", where, i), true)
				if err != nil {
					return nil, err
				}
				e.Children = append(e.Children, ch)
			}
		default:
			return nil, entryErr(where, fmt.Errorf("%w: entries должен быть списком, получено %T", ErrMalformedEntry, v))
		}
	}
	return e, nil
}

func parseBorder(v interface{}, where string) (*BorderSpec, error) {
	b := &BorderSpec{Type: 1, Color: "black"}
	switch vv := v.(type) {
	case map[string]interface{}:
		for k, x := range vv {
			switch k {
			case "type":
				if x != nil {
					b.Type = x
				}
			case "color":
				if x != nil {
					b.Color = toString(x)
				}
			default:
				return nil, entryErr(where, fmt.Errorf("%w: draw_border.%s", ErrUnknownKey, k))
			}
		}
	case nil:
	default:
		if n, ok := toInt(v); ok {
			b.Type = n
			break
		}
		return nil, entryErr(where, fmt.Errorf("%w: draw_border должен быть словарём {type, color}", ErrMalformedEntry))
	}
	return b, nil
}

func parseSpan(v interface{}, where string) (*Span, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return nil, entryErr(where, fmt.Errorf("%w: span должен быть списком [строк, столбцов]", ErrMalformedEntry))
	}
	rows, ok1 := toInt(arr[0])
	cols, ok2 := toInt(arr[1])
	if !ok1 || !ok2 || rows < 1 || cols < 1 {
		return nil, entryErr(where, fmt.Errorf("%w: span %v", ErrMalformedEntry, arr))
	}
	return &Span{Rows: rows, Cols: cols}, nil
}

// headerEntry строит литерал заголовка столбца.
func headerEntry(c *ColumnFormat, where string) *Entry {
	return &Entry{
		Kind:     EntryLiteral,
		Where:    where,
		Text:     c.Header,
		Format:   c.HeaderFormat,
		Comment:  c.Comment,
		Span:     c.Span,
		NoCommit: c.NoCommit,
	}
}
