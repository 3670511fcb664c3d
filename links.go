package xml2xl

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

type linkKey struct {
	sheet, id string
}

// LinkRequest — ячейка From должна стать ссылкой на ячейку (Sheet, ID).
type LinkRequest struct {
	From  *Cell
	Sheet string
	ID    string
}

// LinkRegistry — общий для всех листов прогона справочник адресатов ссылок.
// Заполняется во время вычисления листов, после Seal только читается.
type LinkRegistry struct {
	cells  map[linkKey]*Cell
	dups   map[linkKey]*Cell
	sealed bool
}

func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{cells: make(map[linkKey]*Cell), dups: make(map[linkKey]*Cell)}
}

// Register запоминает ячейку как адресат (sheet, id). Повтор ключа не
// ошибка: несколько ячеек могут ссылаться на один адрес. Ошибкой становится
// только ссылка на такой неоднозначный ключ (см. Resolve).
func (r *LinkRegistry) Register(sheet, id string, c *Cell) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	k := linkKey{sheet, id}
	if _, ok := r.cells[k]; ok {
		if _, seen := r.dups[k]; !seen {
			r.dups[k] = c
		}
		return nil
	}
	r.cells[k] = c
	return nil
}

func (r *LinkRegistry) Seal() { r.sealed = true }

func (r *LinkRegistry) Lookup(sheet, id string) (*Cell, bool) {
	c, ok := r.cells[linkKey{sheet, id}]
	return c, ok
}

func (r *LinkRegistry) Len() int { return len(r.cells) }

// Resolve проставляет внутренние гиперссылки всем запросам. Листы-адресаты
// адресуются по выходным (очищенным) именам из names.
func (r *LinkRegistry) Resolve(reqs []LinkRequest, names *SheetNames) error {
	if !r.sealed {
		return ErrRegistryOpen
	}
	for _, req := range reqs {
		k := linkKey{req.Sheet, req.ID}
		dst, ok := r.cells[k]
		if !ok {
			return &DanglingLinkError{Sheet: req.Sheet, ID: req.ID}
		}
		if dup, ok := r.dups[k]; ok {
			return &DuplicateLinkError{
				Sheet: req.Sheet, ID: req.ID,
				Row: dst.Row, Col: dst.Col,
				DupRow: dup.Row, DupCol: dup.Col,
			}
		}
		ref, err := excelize.CoordinatesToCellName(dst.Col+1, dst.Row+1)
		if err != nil {
			return fmt.Errorf("ссылка на (%s, %s): %w", req.Sheet, req.ID, err)
		}
		req.From.Link = &Hyperlink{
			Target:   fmt.Sprintf("'%s'!%s", names.Get(req.Sheet), ref),
			Internal: true,
		}
	}
	return nil
}
