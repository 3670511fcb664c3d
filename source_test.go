package xml2xl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsXML = `<root>
  <item id="1"><name>Widget</name><!-- c --><price>9.99</price></item>
  <item id="2"><name> Gadget  box </name><tags><tag>a</tag><tag>b</tag></tags></item>
  <mixed>lead<b>bold</b>tail</mixed>
  <empty/>
</root>`

func texts(t *testing.T, nodes []Node) []string {
	t.Helper()
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s, _ := n.Text()
		out = append(out, s)
	}
	return out
}

func TestXMLNode(t *testing.T) {
	root, err := ParseXML(itemsXML)
	require.NoError(t, err)

	items, err := root.Find("item")
	require.NoError(t, err)
	require.Len(t, items, 2)

	id, ok := items[1].Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "2", id)
	_, ok = items[1].Attr("missing")
	assert.False(t, ok)

	names, err := root.Find("item/name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget", " Gadget  box "}, texts(t, names))

	tags, err := root.Find(".//tag")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts(t, tags))

	self, err := items[0].Find(".")
	require.NoError(t, err)
	assert.Same(t, items[0], self[0])

	_, ok = items[0].Text()
	assert.False(t, ok, "элемент начинается с дочернего элемента")

	mixed, err := root.Find("mixed")
	require.NoError(t, err)
	s, ok := mixed[0].Text()
	assert.True(t, ok)
	assert.Equal(t, "lead", s)

	empty, err := root.Find("empty")
	require.NoError(t, err)
	_, ok = empty[0].Text()
	assert.False(t, ok)

	_, err = root.Find("item[")
	assert.Error(t, err)
}

func TestFindText(t *testing.T) {
	root, err := ParseXML(itemsXML)
	require.NoError(t, err)

	s, ok, err := findText(root, "item/name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Widget", s)

	s, ok, err = findText(root, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "", s)

	_, ok, err = findText(root, "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScope(t *testing.T) {
	a, _ := ParseXML(`<a/>`)
	b, _ := ParseXML(`<b/>`)
	s := Scope{a}
	s2 := s.Push(b)
	assert.Len(t, s, 1)
	assert.Same(t, b, s2.Last())

	n, ok := s2.At(-2)
	assert.True(t, ok)
	assert.Same(t, a, n)
	_, ok = s2.At(-3)
	assert.False(t, ok)
	_, ok = s2.At(0)
	assert.False(t, ok)
}

func TestJSONNode(t *testing.T) {
	root, err := ParseJSON("```json\n" + `{"items": [
		{"id": 1, "name": "Widget", "tags": ["a", "b"]},
		{"id": 2, "name": "Gadget", "meta": {"k": "v"}}
	]}` + "\n```")
	require.NoError(t, err)

	items, err := root.Find("items")
	require.NoError(t, err)
	require.Len(t, items, 2)

	id, ok := items[0].Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "1", id)
	_, ok = items[1].Attr("meta")
	assert.False(t, ok)

	names, err := root.Find("items/name")
	require.NoError(t, err)
	assert.Equal(t, []string{"Widget", "Gadget"}, texts(t, names))

	tags, err := root.Find("$.items[*].tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts(t, tags))

	rel, err := items[1].Find("@.meta.k")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, texts(t, rel))

	_, ok = items[0].Text()
	assert.False(t, ok)

	all, err := items[1].Find("meta/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, texts(t, all))
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	x1 := write("a.xml", `<r><item>1</item></r>`)
	x2 := write("b.xml", `<r><item>2</item><other/></r>`)
	j1 := write("a.json", `{"a": 1, "b": 2}`)
	j2 := write("b.json", `{"b": 3}`)

	root, err := LoadSources([]string{x1, x2})
	require.NoError(t, err)
	items, err := root.Find("item")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, texts(t, items))

	root, err = LoadSources([]string{j1, j2})
	require.NoError(t, err)
	s, _, err := findText(root, "b")
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	_, err = LoadSources([]string{x1, j1})
	assert.Error(t, err)
	_, err = LoadSources([]string{filepath.Join(dir, "c.txt")})
	assert.Error(t, err)
	_, err = LoadSources(nil)
	assert.ErrorIs(t, err, ErrMissingField)
}
