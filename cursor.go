package xml2xl

import (
	"fmt"
	"strconv"
	"strings"
)

// Delta — смещение курсора по одной оси. "+N"/"-N" сдвигают от текущего
// значения, всё остальное задаёт абсолютную позицию.
type Delta struct {
	Relative bool
	N        int
}

// ParseDelta разбирает значение ключей row/col шаблона.
func ParseDelta(v interface{}) (*Delta, error) {
	switch vv := v.(type) {
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return nil, fmt.Errorf("пустое смещение")
		}
		rel := false
		sign := 1
		switch s[0] {
		case '+':
			rel, s = true, s[1:]
		case '-':
			rel, sign, s = true, -1, s[1:]
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("некорректное смещение %q", vv)
		}
		return &Delta{Relative: rel, N: sign * n}, nil
	default:
		n, ok := toInt(v)
		if !ok || n < 0 {
			return nil, fmt.Errorf("некорректное смещение %v", v)
		}
		return &Delta{N: n}, nil
	}
}

// Apply возвращает новую координату.
func (d Delta) Apply(cur int) int {
	if d.Relative {
		return cur + d.N
	}
	return d.N
}

func (d Delta) String() string {
	if !d.Relative {
		return strconv.Itoa(d.N)
	}
	if d.N < 0 {
		return strconv.Itoa(d.N)
	}
	return "+" + strconv.Itoa(d.N)
}

// Cursor — позиция записи на листе (0-based) и достигнутый максимум.
// MaxRow/MaxCol растут только на зафиксированных записях (UpdateMax).
type Cursor struct {
	Row, Col       int
	MaxRow, MaxCol int
}

func NewCursor(row, col int) *Cursor {
	return &Cursor{Row: row, Col: col, MaxRow: row, MaxCol: col}
}

func (c *Cursor) Clone() *Cursor {
	cp := *c
	return &cp
}

func (c *Cursor) UpdateMax() {
	if c.Row > c.MaxRow {
		c.MaxRow = c.Row
	}
	if c.Col > c.MaxCol {
		c.MaxCol = c.Col
	}
}

// Move применяет смещения; nil означает «ось не трогаем».
func (c *Cursor) Move(row, col *Delta) {
	if row != nil {
		c.Row = row.Apply(c.Row)
	}
	if col != nil {
		c.Col = col.Apply(c.Col)
	}
}
