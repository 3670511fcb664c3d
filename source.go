package xml2xl

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Node — узел исходного документа, над которым выполняются запросы шаблона.
type Node interface {
	// Find возвращает узлы, найденные по пути относительно этого узла,
	// в порядке документа.
	Find(path string) ([]Node, error)
	// Text — текст узла; ok == false, если текста нет вовсе.
	Text() (string, bool)
	// Attr — значение атрибута; ok == false, если атрибута нет.
	Attr(name string) (string, bool)
}

// Scope — цепочка узлов от корня документа до текущего.
type Scope []Node

// At адресует узел с конца: -1 — текущий, -2 — родитель и т.д.
func (s Scope) At(idx int) (Node, bool) {
	i := len(s) + idx
	if idx >= 0 || i < 0 {
		return nil, false
	}
	return s[i], true
}

func (s Scope) Last() Node { return s[len(s)-1] }

// Push возвращает новую цепочку, не трогая исходную.
func (s Scope) Push(n Node) Scope {
	out := make(Scope, len(s), len(s)+1)
	copy(out, s)
	return append(out, n)
}

// findText — текст первого найденного узла (как findtext в ElementTree):
// найденный узел без текста даёт "", ничего не найдено — ok == false.
func findText(n Node, path string) (string, bool, error) {
	found, err := n.Find(path)
	if err != nil {
		return "", false, err
	}
	if len(found) == 0 {
		return "", false, nil
	}
	t, _ := found[0].Text()
	return t, true, nil
}

type sourceKind int

const (
	sourceXML sourceKind = iota
	sourceJSON
)

func kindOf(path string) (sourceKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return sourceXML, nil
	case ".json":
		return sourceJSON, nil
	default:
		return 0, fmt.Errorf("неизвестный тип исходного файла %q (ожидается .xml или .json)", path)
	}
}

// LoadSources читает один или несколько исходных файлов и сливает их под
// общий корень. Смешивать XML и JSON нельзя.
func LoadSources(paths []string) (Node, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: нет исходных файлов", ErrMissingField)
	}
	kind, err := kindOf(paths[0])
	if err != nil {
		return nil, err
	}
	for _, p := range paths[1:] {
		k, err := kindOf(p)
		if err != nil {
			return nil, err
		}
		if k != kind {
			return nil, fmt.Errorf("нельзя смешивать XML и JSON: %s", p)
		}
	}
	if kind == sourceJSON {
		return LoadJSON(paths)
	}
	return LoadXML(paths)
}
