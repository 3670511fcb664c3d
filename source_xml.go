package xml2xl

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Имя синтетического корня, под которым сливаются входные XML.
const xmlTopTag = "top"

type xmlPaths map[string]etree.Path

func (c xmlPaths) compile(path string) (etree.Path, error) {
	if p, ok := c[path]; ok {
		return p, nil
	}
	p, err := etree.CompilePath(path)
	if err != nil {
		return etree.Path{}, fmt.Errorf("путь %q: %w", path, err)
	}
	c[path] = p
	return p, nil
}

type xmlNode struct {
	e     *etree.Element
	paths xmlPaths
}

// NewXMLNode оборачивает элемент etree в Node.
func NewXMLNode(e *etree.Element) Node {
	return &xmlNode{e: e, paths: make(xmlPaths)}
}

func (n *xmlNode) Find(path string) ([]Node, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return []Node{n}, nil
	}
	p, err := n.paths.compile(path)
	if err != nil {
		return nil, err
	}
	found := n.e.FindElementsPath(p)
	out := make([]Node, len(found))
	for i, e := range found {
		out[i] = &xmlNode{e: e, paths: n.paths}
	}
	return out, nil
}

// Text есть, только если элемент начинается с символьных данных.
func (n *xmlNode) Text() (string, bool) {
	for _, ch := range n.e.Child {
		switch ch.(type) {
		case *etree.CharData:
			return n.e.Text(), true
		case *etree.Comment:
			continue
		default:
			return "", false
		}
	}
	return "", false
}

func (n *xmlNode) Attr(name string) (string, bool) {
	a := n.e.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// LoadXML читает файлы и переносит дочерние элементы их корней под общий
// элемент <top>.
func LoadXML(paths []string) (Node, error) {
	top := etree.NewElement(xmlTopTag)
	for _, p := range paths {
		doc := etree.NewDocument()
		if err := doc.ReadFromFile(p); err != nil {
			return nil, fmt.Errorf("чтение %s: %w", p, err)
		}
		root := doc.Root()
		if root == nil {
			return nil, fmt.Errorf("%s: нет корневого элемента", p)
		}
		for _, ch := range root.ChildElements() {
			top.AddChild(ch)
		}
	}
	return NewXMLNode(top), nil
}

// ParseXML — то же для одного документа в памяти.
func ParseXML(data string) (Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return nil, fmt.Errorf("разбор XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("нет корневого элемента")
	}
	top := etree.NewElement(xmlTopTag)
	for _, ch := range root.ChildElements() {
		top.AddChild(ch)
	}
	return NewXMLNode(top), nil
}
