package xml2xl

import (
	"encoding/json"
	"fmt"
)

// Style — словарь форматирования ячейки в нотации шаблона
// (bold, font_color, bg_color, border, left_color, num_format, ...).
type Style map[string]interface{}

var borderSides = [...]string{"left", "right", "top", "bottom"}

func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge возвращает новый словарь: ключи over перекрывают ключи s.
// Исходные словари не меняются.
func (s Style) Merge(over Style) Style {
	out := make(Style, len(s)+len(over))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// ExpandBorders заменяет составные border/border_color на четыре стороны,
// чтобы потом их можно было переопределять по отдельности.
func ExpandBorders(s Style) Style {
	out := s.Clone()
	for _, suffix := range []string{"", "_color"} {
		v, ok := out["border"+suffix]
		if !ok {
			continue
		}
		for _, side := range borderSides {
			out[side+suffix] = v
		}
		delete(out, "border"+suffix)
	}
	return out
}

// styleKey — канонический вид словаря (json сортирует ключи map).
func styleKey(s Style) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("стиль %v: %w", s, err)
	}
	return string(b), nil
}

// StylePool интернирует словари стилей в дескрипторы бэкенда.
// Один пул на книгу: количество стилей в xlsx ограничено.
type StylePool struct {
	backend Backend
	handles map[string]int
}

func NewStylePool(b Backend) *StylePool {
	return &StylePool{backend: b, handles: make(map[string]int)}
}

// Handle возвращает дескриптор стиля; пустой словарь — 0 (без стиля).
func (p *StylePool) Handle(s Style) (int, error) {
	if len(s) == 0 {
		return 0, nil
	}
	key, err := styleKey(s)
	if err != nil {
		return 0, err
	}
	if h, ok := p.handles[key]; ok {
		return h, nil
	}
	h, err := p.backend.NewStyle(s)
	if err != nil {
		return 0, fmt.Errorf("создание стиля %s: %w", key, err)
	}
	p.handles[key] = h
	return h, nil
}

func (p *StylePool) Len() int { return len(p.handles) }
