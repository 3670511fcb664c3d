package xml2xl

import (
	"fmt"
	"strings"
)

// sheetNamePlaceholder подставляется в xml_select именем текущего листа.
const sheetNamePlaceholder = "%SHEETNAME%"

// linkTarget — ссылка, которую получит ячейка литерала: на лист To по
// идентификатору ID (nil — идентификатор равен тексту ячейки).
type linkTarget struct {
	To string
	ID *string
}

// boundEntry — запись вместе с цепочкой узлов, в которой она вычисляется.
type boundEntry struct {
	e     *Entry
	scope Scope
}

// evaluate — рекурсивный интерпретатор записи. cur == nil означает, что
// значение не размещается, а поднимается в ячейку предка. chain содержит
// только форматы записей (без DEFAULT и формата столбца), border в нём
// уже разложен по сторонам.
func (r *sheetRun) evaluate(e *Entry, scope Scope, cur *Cursor, chain Style, link *linkTarget) (interface{}, error) {
	if e.Format != nil {
		chain = chain.Merge(ExpandBorders(e.Format))
	}
	if e.Kind == EntryLiteral {
		return r.literal(e, e.Text, cur, chain, link)
	}

	var childCur, start *Cursor
	if e.Placed() {
		childCur = cur
	}
	if cur != nil {
		start = cur.Clone()
	}

	var values []interface{}
	if e.Query != nil {
		vals, err := r.query(e, scope)
		if err != nil {
			return nil, err
		}
		values = vals
	}

	if e.Kind == EntryComposite {
		children, err := r.expand(e, scope)
		if err != nil {
			return nil, err
		}
		for i, ch := range children {
			v, err := r.evaluate(ch.e, ch.scope, childCur, chain, nil)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if i < len(children)-1 {
				if err := r.move(e, cur); err != nil {
					return nil, err
				}
				continue
			}
			if e.Border != nil {
				if cur == nil {
					return nil, entryErr(e.Where, fmt.Errorf("%w: draw_border без размещения", ErrNoCursor))
				}
				r.buf.DrawBorder(start.Row, start.Col, cur.MaxRow, cur.MaxCol, e.Border.Type, e.Border.Color)
			}
		}
	}

	if e.Placed() {
		return nil, nil
	}
	return r.synthesize(e, values, scope, cur, chain)
}

// move сдвигает курсор между соседними детьми на смещения самой записи.
func (r *sheetRun) move(e *Entry, cur *Cursor) error {
	if !e.Placed() {
		return nil
	}
	if cur == nil {
		return entryErr(e.Where, ErrNoCursor)
	}
	cur.Move(e.Row, e.Col)
	r.moves++
	return nil
}

// query собирает значения по пути xml относительно текущего узла или его предка.
func (r *sheetRun) query(e *Entry, scope Scope) ([]interface{}, error) {
	q := e.Query
	node, ok := scope.At(-1 - q.Up)
	if !ok {
		return nil, entryErr(e.Where, fmt.Errorf("%w: %d раз(а) ../ выше корня документа", ErrMalformedEntry, q.Up))
	}
	found, err := node.Find(q.Path)
	if err != nil {
		return nil, entryErr(e.Where, err)
	}
	if q.First && len(found) > 1 {
		found = found[:1]
	}
	format := r.text
	if e.Formatter != nil {
		format = e.Formatter
	}

	var values []interface{}
	seen := make(map[string]bool)
	seenNil := false
	for _, n := range found {
		var v interface{}
		if q.HasAttr {
			if s, ok := n.Attr(q.Attr); ok {
				v = s
			}
		} else {
			t, ok := n.Text()
			if !ok {
				continue
			}
			v = format(t)
		}
		if q.Unique {
			if v == nil {
				if seenNil {
					continue
				}
				seenNil = true
			} else {
				s := v.(string)
				if seen[s] {
					continue
				}
				seen[s] = true
			}
		}
		values = append(values, v)
	}
	return values, nil
}

// expand разворачивает детей: xml_select — в копию записи на каждый
// найденный узел, "#column_headers" — в заголовки столбцов листа.
func (r *sheetRun) expand(e *Entry, scope Scope) ([]boundEntry, error) {
	if e.ColumnHeaders {
		out := make([]boundEntry, len(r.headers))
		for i, h := range r.headers {
			out[i] = boundEntry{h, scope}
		}
		return out, nil
	}
	var out []boundEntry
	for _, ch := range e.Children {
		if ch.Select == nil {
			out = append(out, boundEntry{ch, scope})
			continue
		}
		path := strings.ReplaceAll(ch.Select.Path, sheetNamePlaceholder, r.name)
		nodes, err := scope.Last().Find(path)
		if err != nil {
			return nil, entryErr(ch.Where, err)
		}
		if ch.Select.First && len(nodes) > 1 {
			nodes = nodes[:1]
		}
		if len(nodes) == 0 {
			continue
		}
		sel := *ch
		sel.Select = nil
		sel.Where = fmt.Sprintf("%s/xml_select(%s)", ch.Where, path)
		for _, n := range nodes {
			out = append(out, boundEntry{&sel, scope.Push(n)})
		}
	}
	return out, nil
}

// synthesize собирает текст ячейки из значений: prefix, eval(x), suffix и
// separator, каждый кусок предваряется стилем tfmt, если он задан.
func (r *sheetRun) synthesize(e *Entry, values []interface{}, scope Scope, cur *Cursor, chain Style) (interface{}, error) {
	runs := make([]interface{}, 0, len(values)*2)
	add := func(v interface{}) {
		if e.TextFormat != nil {
			runs = append(runs, e.TextFormat.Clone())
		}
		runs = append(runs, v)
	}
	for i, x := range values {
		if e.Prefix != nil {
			add(e.Prefix)
		}
		v, err := e.Eval.Apply(x)
		if err != nil {
			ee := &EvalError{Where: e.Where, Expr: e.Eval.Source, Value: x, Err: err}
			r.log.Printf("❌ %v", ee)
			return nil, ee
		}
		if !isBlank(v) {
			add(v)
		}
		if e.Suffix != nil {
			add(e.Suffix)
		}
		if e.Separator != nil && i < len(values)-1 {
			add(e.Separator)
		}
	}

	last := scope.Last()
	var link *linkTarget
	to := e.LinkTo
	if e.LinkToSelector != "" {
		to = nil
		t, ok, err := findText(last, e.LinkToSelector)
		if err != nil {
			return nil, entryErr(e.Where, err)
		}
		if ok {
			to = &t
		}
	}
	if to != nil {
		link = &linkTarget{To: *to}
		if e.LinkID != "" {
			id, ok, err := findText(last, e.LinkID)
			if err != nil {
				return nil, entryErr(e.Where, err)
			}
			if ok {
				link.ID = &id
			}
		}
	}

	leaf := *e
	leaf.Kind = EntryLiteral
	leaf.Text = runs
	leaf.LinkTo = nil
	leaf.Where = e.Where + "/text"
	return r.literal(&leaf, runs, cur, chain, link)
}

// literal записывает готовое значение в ячейку под курсором (если он есть)
// и возвращает его наверх без изменений.
func (r *sheetRun) literal(e *Entry, text interface{}, cur *Cursor, chain Style, link *linkTarget) (interface{}, error) {
	if cur == nil {
		return text, nil
	}
	// DEFAULT кладёт буфер при первом касании ячейки, поверх него формат
	// столбца, затем цепочка форматов записей
	style := r.columns[cur.Col].Merge(chain)
	if !e.NoCommit {
		cur.UpdateMax()
	}
	flat, runs, plain := flattenText(text)
	if link == nil && e.LinkTo != nil {
		link = &linkTarget{To: *e.LinkTo}
	}

	var cell *Cell
	if link == nil {
		var value interface{} = flat
		if !plain {
			value = runs
		}
		cell = r.buf.Touch(cur.Row, cur.Col, value, style)
	} else {
		if !plain {
			flat = runText(runs)
		}
		id := flat
		if link.ID != nil {
			id = *link.ID
		}
		cell = r.buf.Touch(cur.Row, cur.Col, flat, style)
		if err := r.links.Register(r.name, id, cell); err != nil {
			return nil, entryErr(e.Where, err)
		}
		cell.LinkID = id
		r.requests = append(r.requests, LinkRequest{From: cell, Sheet: link.To, ID: id})
	}

	if e.Comment != "" {
		cell.Comment = e.Comment
	}
	if e.Span != nil && (e.Span.Rows > 1 || e.Span.Cols > 1) {
		r.buf.Merge(cur.Row, cur.Col, cur.Row+e.Span.Rows-1, cur.Col+e.Span.Cols-1)
	}
	return text, nil
}
