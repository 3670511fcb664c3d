package xml2xl

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopXML = `<shop>
  <item id="1"><name>Widget</name><group>B</group><price>9.99</price></item>
  <item id="2"><name>Gadget</name><group>A</group><price>5</price></item>
  <item id="3"><name>Gizmo</name><group>B</group><price>12</price></item>
</shop>`

func renderDoc(t *testing.T, tmpl, doc string, opts Options) (*memBackend, *bytes.Buffer, error) {
	t.Helper()
	logger, buf := testLogger()
	tp, err := ParseTemplate([]byte(tmpl), "json", opts.FilterTag, logger)
	require.NoError(t, err)
	root, err := ParseXML(doc)
	require.NoError(t, err)
	opts.Logger = logger
	m := newMemBackend()
	return m, buf, Render(tp, root, m, opts)
}

func newTestRun(t *testing.T, tmpl, doc string) (*sheetRun, *Template, Node) {
	t.Helper()
	tp, err := parseJSONTemplate(t, tmpl)
	require.NoError(t, err)
	root, err := ParseXML(doc)
	require.NoError(t, err)
	logger, _ := testLogger()
	def := tp.Sheets[0]
	return newSheetRun(def.Name, def, root, tp, NewLinkRegistry(), XMLStrip, logger), tp, root
}

func bufValue(t *testing.T, r *sheetRun, row, col int) interface{} {
	t.Helper()
	c, ok := r.buf.Lookup(row, col)
	require.True(t, ok, "нет ячейки (%d,%d)", row, col)
	return c.Value
}

func TestRenderNameWidget(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "xml": "item", "entries": [{"text": "Name: "}, {"xml": "item/name#value"}]}]}`,
		`<doc><item><name value="Widget"/></item></doc>`, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, m.sheets)
	c := m.get("S", 0, 0)
	require.NotNil(t, c)
	assert.Equal(t, "Name: Widget", c.Value)
	assert.Nil(t, c.Rich)
}

func TestPlacedCompositeMoves(t *testing.T) {
	r, _, _ := newTestRun(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": ["a", "b", {"entries": ["c", "d"]}]}]}`, shopXML)
	require.NoError(t, r.process())
	assert.Equal(t, 2, r.moves)
	assert.Equal(t, "a", bufValue(t, r, 0, 0))
	assert.Equal(t, "b", bufValue(t, r, 1, 0))
	assert.Equal(t, "cd", bufValue(t, r, 2, 0))
	assert.Equal(t, 2, r.cursor.Row)
	assert.Equal(t, 2, r.cursor.MaxRow)
}

func TestUnplacedCompositeKeepsCursor(t *testing.T) {
	r, tp, root := newTestRun(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": [{"entries": ["a", {"text": "b"}, {"xml": "item/name", "separator": ","}]}]}]}`, shopXML)
	cur := NewCursor(3, 2)
	v, err := r.evaluate(tp.Sheets[0].Root.Children[0], Scope{root}, cur, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Row)
	assert.Equal(t, 2, cur.Col)
	assert.Equal(t, 0, r.moves)
	assert.NotNil(t, v)
	assert.Equal(t, "abWidget,Gadget,Gizmo", bufValue(t, r, 3, 2))
}

func TestMoveWithoutCursor(t *testing.T) {
	r, _, _ := newTestRun(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "entries": [{"row": "+1", "entries": ["a", "b"]}]}]}`, shopXML)
	err := r.process()
	assert.ErrorIs(t, err, ErrNoCursor)
	var ee *EntryError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "sheet(S)/entries[0]", ee.Where)
}

func TestDrawBorder(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "col": "+1", "draw_border": {"type": 2, "color": "red"}, "entries": ["a", "b", "c"]}]}`,
		shopXML, DefaultOptions())
	require.NoError(t, err)

	left := m.style(m.get("S", 0, 0).Style)
	assert.Equal(t, float64(2), left["left"])
	assert.Equal(t, "red", left["top_color"])
	assert.Equal(t, float64(2), left["bottom"])
	assert.NotContains(t, left, "right")

	mid := m.style(m.get("S", 0, 1).Style)
	assert.Equal(t, Style{"top": float64(2), "top_color": "red", "bottom": float64(2), "bottom_color": "red"}, mid)

	right := m.style(m.get("S", 0, 2).Style)
	assert.Equal(t, float64(2), right["right"])
	assert.NotContains(t, right, "left")
}

func TestCrossSheetLinks(t *testing.T) {
	items := `{"name": "Items", "row": "+1", "entries": [{"xml_select": "item", "xml": "name", "link_to": "Details"}]}`
	details := `{"name": "Details", "row": "+2", "entries": [{"xml_select": "item", "xml": "name", "link_to": "Items"}]}`
	for _, order := range [][2]string{{items, details}, {details, items}} {
		m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [`+order[0]+`,`+order[1]+`]}`, shopXML, DefaultOptions())
		require.NoError(t, err)

		assert.Equal(t, "Widget", m.get("Items", 0, 0).Value)
		assert.Equal(t, &Hyperlink{Target: "'Details'!A1", Internal: true}, m.get("Items", 0, 0).Link)
		assert.Equal(t, &Hyperlink{Target: "'Details'!A3", Internal: true}, m.get("Items", 1, 0).Link)
		assert.Equal(t, &Hyperlink{Target: "'Details'!A5", Internal: true}, m.get("Items", 2, 0).Link)
		assert.Equal(t, &Hyperlink{Target: "'Items'!A3", Internal: true}, m.get("Details", 4, 0).Link)
	}
}

func TestDanglingLinkWritesNothing(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": [{"xml_select": "item", "xml": "name", "link_to": "Nowhere"}]}]}`,
		shopXML, DefaultOptions())
	var dangling *DanglingLinkError
	require.True(t, errors.As(err, &dangling))
	assert.Equal(t, "Nowhere", dangling.Sheet)
	assert.Equal(t, "Widget", dangling.ID)
	assert.Zero(t, m.calls)
}

func TestDuplicateLinkID(t *testing.T) {
	_, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": [{"xml_select": "item", "xml": "group", "link_to": "S"}]}]}`,
		shopXML, DefaultOptions())
	var dup *DuplicateLinkError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "B", dup.ID)
}

func TestManyLinksToOneTarget(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "Idx", "row": "+1", "entries": [{"xml_select": "item", "xml": "group", "link_to": "G"}]},
		{"name": "G", "row": "+1", "entries": [{"text": "A", "link_to": "G"}, {"text": "B", "link_to": "G"}]}
	]}`, shopXML, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "'G'!A2", m.get("Idx", 0, 0).Link.Target)
	assert.Equal(t, "'G'!A1", m.get("Idx", 1, 0).Link.Target)
	assert.Equal(t, "'G'!A2", m.get("Idx", 2, 0).Link.Target)
}

func TestColumnFormatUnderSheetDefault(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {"align": "left", "font_size": 9}}, "sheets": [
		{"name": "S", "row": "+1", "col": 0,
		 "column_formats": [{"header": "h", "cell_format": {"align": "right", "border": 1}}],
		 "entries": [{"text": "v"}, {"text": "w", "format": {"align": "center"}}]}]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	v := m.style(m.get("S", 0, 0).Style)
	assert.Equal(t, "right", v["align"])
	assert.Equal(t, float64(9), v["font_size"])
	assert.Equal(t, float64(1), v["left"])

	w := m.style(m.get("S", 1, 0).Style)
	assert.Equal(t, "center", w["align"])

	// стиль столбца для незаполненных ячеек тоже с разложенной рамкой
	col := m.style(m.columns["S"][0].Style)
	assert.Equal(t, float64(1), col["bottom"])
	assert.NotContains(t, col, "border")
}

func TestInheritedBorderSideOverride(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "format": {"border": 1, "border_color": "red"}, "entries": [
			{"text": "v", "format": {"left": 5, "top_color": "blue"}}]}]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	st := m.style(m.get("S", 0, 0).Style)
	assert.Equal(t, float64(5), st["left"])
	assert.Equal(t, float64(1), st["right"])
	assert.Equal(t, "blue", st["top_color"])
	assert.Equal(t, "red", st["bottom_color"])
	assert.NotContains(t, st, "border")
}

func TestFilterSheetsAndSelectors(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "Index", "row": "+1", "entries": [
			{"xml_select": "item", "xml": "name", "link_to_selector": "group"}]},
		{"xml_filter_sheet": "item/group", "row": "+1", "entries": [
			{"xml_select": "item[group='%SHEETNAME%']", "xml": "name", "link_to": "Index"}]}
	]}`, shopXML, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Index", "A", "B"}, m.sheets)

	assert.Equal(t, "'B'!A1", m.get("Index", 0, 0).Link.Target)
	assert.Equal(t, "'A'!A1", m.get("Index", 1, 0).Link.Target)
	assert.Equal(t, "'B'!A2", m.get("Index", 2, 0).Link.Target)

	assert.Equal(t, "Gadget", m.get("A", 0, 0).Value)
	assert.Equal(t, "'Index'!A2", m.get("A", 0, 0).Link.Target)
	assert.Equal(t, "Gizmo", m.get("B", 1, 0).Value)
	assert.Equal(t, "'Index'!A3", m.get("B", 1, 0).Link.Target)
}

func TestSelectSheet(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"xml_select_sheet": {"select_path": "item", "select_name": "name"},
		 "col": "+1", "entries": [{"xml": "#id"}, {"xml": "price"}, {"xml": "name"}]}
	]}`, `<shop><item id="1"><name>  Widget </name><price>9.99</price></item><item id="2"><name>A b</name><price>5</price></item></shop>`,
		DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget", "A.b"}, m.sheets)
	assert.Equal(t, "1", m.get("Widget", 0, 0).Value)
	assert.Equal(t, "9.99", m.get("Widget", 0, 1).Value)
	assert.Equal(t, "Widget", m.get("Widget", 0, 2).Value)
	assert.Equal(t, "5", m.get("A.b", 0, 1).Value)
}

func TestColumnHeaders(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}, "num": {"num_format": "0.00"}, "hdr": {"bold": 1}}, "sheets": [
		{"name": "S", "row": "+1", "col": 0, "autofilter": 1, "active": true, "zoom": 85,
		 "column_formats": [
			{"header": "Name", "width": 20, "format": "hdr"},
			{"header": "Secret", "hide_unless_select": "item/secret"},
			{"header": "Price", "cell_format": "num", "comment": "цена"}],
		 "entries": [
			{"col": "+1", "entries": "#column_headers"},
			{"xml_select": "item", "col": "+1", "entries": [{"xml": "name"}, {"text": ""}, {"xml": "price"}]}]}
	]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Name", m.get("S", 0, 0).Value)
	assert.Equal(t, Style{"bold": float64(1)}, m.style(m.get("S", 0, 0).Style))
	assert.Equal(t, "цена", m.get("S", 0, 2).Comment)
	assert.Equal(t, "Gizmo", m.get("S", 3, 0).Value)
	assert.Equal(t, "12", m.get("S", 3, 2).Value)
	assert.Equal(t, Style{"num_format": "0.00"}, m.style(m.get("S", 3, 2).Style))

	cols := m.columns["S"]
	require.NotNil(t, cols[0].Width)
	assert.Equal(t, 20.0, *cols[0].Width)
	require.NotNil(t, cols[1].Width)
	assert.Equal(t, 0.0, *cols[1].Width)
	assert.Nil(t, cols[2].Width)
	assert.Equal(t, Style{"num_format": "0.00"}, m.style(cols[2].Style))

	assert.Equal(t, [4]int{0, 0, 3, 2}, m.filters["S"])
	assert.Equal(t, [2]int{1, 0}, m.freeze["S"])
	assert.Equal(t, 85.0, m.zoom["S"])
	assert.Equal(t, "S", m.active)
}

func TestHiddenHeaderDoesNotCommit(t *testing.T) {
	r, _, _ := newTestRun(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "col": "+1", "column_formats": [{"header": "A"}, {"header": "B", "width": 0}, {"header": ""}],
		 "entries": "#column_headers"}]}`, shopXML)
	require.NoError(t, r.process())
	assert.Equal(t, 0, r.cursor.MaxCol)
	assert.Equal(t, 2, r.cursor.Col)
	assert.Equal(t, "B", bufValue(t, r, 0, 1))
}

func TestEvalAndAffixes(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "xml": "item/name", "eval": "upper(x)", "prefix": "<", "suffix": ">", "separator": ", "}]}`,
		shopXML, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "<WIDGET>, <GADGET>, <GIZMO>", m.get("S", 0, 0).Value)
}

func TestEvalErrorAborts(t *testing.T) {
	m, buf, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "xml": "item/name", "eval": "x.foo"}]}`, shopXML, DefaultOptions())
	var ee *EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "x.foo", ee.Expr)
	assert.Equal(t, "Widget", ee.Value)
	assert.Equal(t, "sheet(S)", ee.Where)
	assert.Zero(t, m.calls)
	assert.Equal(t, 1, countLines(buf, "❌ sheet(S): eval"))
}

func TestRichText(t *testing.T) {
	m, buf, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": [
			{"xml": "item/name", "tfmt": {"bold": 1}, "separator": ", "},
			{"entries": ["Name: ", {"xml": "!item/name", "tfmt": {"italic": 1}}, " ok"]},
			{"text": ["x", {"bold": 1}]}]}]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []interface{}{Style{"bold": float64(1)}, "Widget, Gadget, Gizmo"}, m.get("S", 0, 0).Rich)
	assert.Equal(t, []interface{}{"Name: ", Style{"italic": float64(1)}, "Widget ok"}, m.get("S", 1, 0).Rich)
	assert.Equal(t, "x", m.get("S", 2, 0).Value)
	assert.Equal(t, 1, countLines(buf, "заканчивается стилем"))
}

func TestUniqueAndFirst(t *testing.T) {
	r, _, _ := newTestRun(t, `{"formats": {"DEFAULT": {}}, "sheets": [
		{"name": "S", "row": "+1", "entries": [
			{"xml": "@item/group"},
			{"xml": "!item/name"},
			{"xml": "item/price", "sfmt": "hex2"},
			{"xml_select": "!item", "xml": "../item#id", "separator": "-"}]}]}`, shopXML)
	require.NoError(t, r.process())
	assert.Equal(t, "B|A", bufValue(t, r, 0, 0))
	assert.Equal(t, "Widget", bufValue(t, r, 1, 0))
	assert.Equal(t, "9.990x050x0c", bufValue(t, r, 2, 0))
	assert.Equal(t, "1-2-3", bufValue(t, r, 3, 0))
}

func TestSpanCommentAndLiteralLink(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {"font_size": 9}}, "sheets": [
		{"name": "A", "row": "+1", "entries": [
			{"text": "Title", "span": [1, 3], "comment": "заголовок"},
			{"text": "go", "link_to": "B"}]},
		{"name": "B", "row": "+1", "entries": [{"text": "go", "link_to": "A"}]}]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, [][4]int{{0, 0, 0, 2}}, m.merges["A"])
	c := m.get("A", 0, 0)
	assert.Equal(t, "заголовок", c.Comment)
	assert.Equal(t, commentXScale, c.XScale)
	assert.Equal(t, commentYScale, c.YScale)
	assert.Equal(t, Style{"font_size": float64(9)}, m.style(c.Style))

	assert.Equal(t, "'B'!A1", m.get("A", 1, 0).Link.Target)
	assert.Equal(t, "'A'!A2", m.get("B", 0, 0).Link.Target)
}

func TestRenderProperties(t *testing.T) {
	opts := DefaultOptions()
	opts.Properties = "title:Отчёт; author:Иванов"
	m, buf, err := renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [{"name": "S", "text": "x"}]}`, shopXML, opts)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"title": "Отчёт", "author": "Иванов"}, m.props)
	assert.Equal(t, 1, countLines(buf, "✅ Лист \"S\": 1 ячеек"))

	opts.Properties = "broken"
	m, _, err = renderDoc(t, `{"formats": {"DEFAULT": {}}, "sheets": [{"name": "S", "text": "x"}]}`, shopXML, opts)
	assert.Error(t, err)
	assert.Zero(t, m.calls)
}

func TestStyleChain(t *testing.T) {
	m, _, err := renderDoc(t, `{"formats": {"DEFAULT": {"font_size": 9, "border": 1}, "b": {"bold": 1, "font_size": 11}}, "sheets": [
		{"name": "S", "row": "+1", "format": {"italic": 1}, "entries": [
			"plain",
			{"format": "b", "entries": [{"text": "deep", "format": {"bold": 0}}]}]}]}`, shopXML, DefaultOptions())
	require.NoError(t, err)

	plain := m.style(m.get("S", 0, 0).Style)
	assert.Equal(t, float64(9), plain["font_size"])
	assert.Equal(t, float64(1), plain["italic"])
	assert.Equal(t, float64(1), plain["left"])
	assert.NotContains(t, plain, "border")

	deep := m.style(m.get("S", 1, 0).Style)
	assert.Equal(t, float64(11), deep["font_size"])
	assert.Equal(t, float64(1), deep["italic"])
}
