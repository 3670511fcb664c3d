package xml2xl

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"
)

// sanitizeJSONBlock извлекает JSON, обёрнутый в тройные кавычки ``` ... ```.
// Если таких кавычек нет, либо структура неверная, возвращает исходную строку.
var fenceRx = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")

func sanitizeJSONBlock(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	m := fenceRx.FindStringSubmatch(s)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// jsonNode — значение JSON-документа. Пути бывают двух видов:
// JSONPath ($.a[*].b, @.a) и путь через "/" (a/b/c) в духе XML, где
// массивы на каждом шаге разворачиваются в элементы.
type jsonNode struct {
	v     interface{}
	exprs map[string]jp.Expr
}

func NewJSONNode(v interface{}) Node {
	return &jsonNode{v: v, exprs: make(map[string]jp.Expr)}
}

func (n *jsonNode) child(v interface{}) *jsonNode {
	return &jsonNode{v: v, exprs: n.exprs}
}

func (n *jsonNode) expr(path string) (jp.Expr, error) {
	if x, ok := n.exprs[path]; ok {
		return x, nil
	}
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("путь %q: %w", path, err)
	}
	n.exprs[path] = x
	return x, nil
}

func expandArrays(vals []interface{}) []interface{} {
	var out []interface{}
	for _, v := range vals {
		if arr, ok := v.([]interface{}); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (n *jsonNode) Find(path string) ([]Node, error) {
	path = strings.TrimSpace(path)
	var vals []interface{}
	switch {
	case path == "" || path == ".":
		return []Node{n}, nil
	case strings.HasPrefix(path, "$") || strings.HasPrefix(path, "@"):
		x, err := n.expr("$" + strings.TrimLeft(path, "$@"))
		if err != nil {
			return nil, err
		}
		vals = expandArrays(x.Get(n.v))
	default:
		vals = []interface{}{n.v}
		for _, seg := range strings.Split(path, "/") {
			if seg == "" || seg == "." {
				continue
			}
			x := jp.R().C(seg)
			if seg == "*" {
				x = jp.R().W()
			}
			var next []interface{}
			for _, v := range vals {
				next = append(next, x.Get(v)...)
			}
			vals = expandArrays(next)
		}
	}
	out := make([]Node, 0, len(vals))
	for _, v := range vals {
		out = append(out, n.child(v))
	}
	return out, nil
}

func (n *jsonNode) Text() (string, bool) {
	switch n.v.(type) {
	case nil, map[string]interface{}, []interface{}:
		return "", false
	default:
		return toString(n.v), true
	}
}

func (n *jsonNode) Attr(name string) (string, bool) {
	m, ok := n.v.(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := m[name]
	if !ok || v == nil {
		return "", false
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return "", false
	}
	return toString(v), true
}

// ParseJSON разбирает один документ (допускается обёртка ```json ... ```).
func ParseJSON(data string) (Node, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return NewJSONNode(v), nil
}

func decodeJSON(data string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(sanitizeJSONBlock(data)), &v); err != nil {
		return nil, fmt.Errorf("разбор JSON: %w", err)
	}
	return v, nil
}

// LoadJSON читает файлы; несколько объектов сливаются в один (ключи более
// поздних файлов побеждают).
func LoadJSON(paths []string) (Node, error) {
	var docs []interface{}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("чтение %s: %w", p, err)
		}
		v, err := decodeJSON(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		docs = append(docs, v)
	}
	if len(docs) == 1 {
		return NewJSONNode(docs[0]), nil
	}
	top := make(map[string]interface{})
	for i, d := range docs {
		m, ok := d.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: для слияния нескольких файлов корень должен быть объектом", paths[i])
		}
		for k, v := range m {
			top[k] = v
		}
	}
	return NewJSONNode(top), nil
}
