package xml2xl

import (
	"fmt"
	"sort"
)

// plannedSheet — лист после развёртывания xml_select_sheet / xml_filter_sheet.
type plannedSheet struct {
	name string
	def  *SheetDef
	node Node
}

// planSheets разворачивает описания листов в конкретные листы.
func planSheets(t *Template, root Node, text Formatter) ([]plannedSheet, error) {
	var out []plannedSheet
	for _, sd := range t.Sheets {
		switch {
		case sd.SelectSheet != nil:
			nodes, err := root.Find(sd.SelectSheet.Path)
			if err != nil {
				return nil, entryErr(sd.Root.Where, fmt.Errorf("xml_select_sheet: %w", err))
			}
			for _, n := range nodes {
				name, ok, err := findText(n, sd.SelectSheet.NamePath)
				if err != nil {
					return nil, entryErr(sd.Root.Where, fmt.Errorf("xml_select_sheet: %w", err))
				}
				name = text(name)
				if !ok || name == "" {
					return nil, entryErr(sd.Root.Where, fmt.Errorf("%w: у выбранного узла нет имени по пути %q", ErrSheetName, sd.SelectSheet.NamePath))
				}
				out = append(out, plannedSheet{name, sd, n})
			}
		case sd.FilterSheet != "":
			nodes, err := root.Find(sd.FilterSheet)
			if err != nil {
				return nil, entryErr(sd.Root.Where, fmt.Errorf("xml_filter_sheet: %w", err))
			}
			seen := make(map[string]bool)
			var names []string
			for _, n := range nodes {
				s, ok := n.Text()
				if !ok || seen[s] {
					continue
				}
				seen[s] = true
				names = append(names, s)
			}
			sort.Strings(names)
			for _, name := range names {
				out = append(out, plannedSheet{name, sd, root})
			}
		default:
			out = append(out, plannedSheet{sd.Name, sd, root})
		}
	}
	return out, nil
}

// Render выполняет шаблон над документом root и пишет результат в w.
// Пока все листы не вычислены и ссылки не разрешены, w не трогается.
func Render(t *Template, root Node, w Backend, opts Options) error {
	log := opts.logger()
	text, err := opts.textFormatter()
	if err != nil {
		return err
	}
	props, err := ParseProperties(opts.Properties)
	if err != nil {
		return err
	}

	planned, err := planSheets(t, root, text)
	if err != nil {
		return err
	}
	logical := make([]string, len(planned))
	for i, p := range planned {
		logical[i] = p.name
	}
	names, err := NewSheetNames(logical)
	if err != nil {
		return err
	}

	links := NewLinkRegistry()
	runs := make([]*sheetRun, len(planned))
	for i, p := range planned {
		log.Printf("🔄 Обработка листа %q...", p.name)
		r := newSheetRun(p.name, p.def, p.node, t, links, text, log)
		if err := r.process(); err != nil {
			log.Printf("❌ Ошибка на листе %q: %v", p.name, err)
			return fmt.Errorf("лист %s: %w", p.name, err)
		}
		log.Printf("✅ Лист %q: %d ячеек", p.name, r.buf.Len())
		runs[i] = r
	}

	log.Printf("🔗 Разрешение ссылок...")
	links.Seal()
	var reqs []LinkRequest
	for _, r := range runs {
		reqs = append(reqs, r.requests...)
	}
	if err := links.Resolve(reqs, names); err != nil {
		log.Printf("❌ Ошибка разрешения ссылок: %v", err)
		return err
	}
	log.Printf("✅ Ссылок: %d", len(reqs))

	for _, r := range runs {
		if err := w.AddSheet(names.Get(r.name)); err != nil {
			return fmt.Errorf("лист %s: %w", r.name, err)
		}
	}
	pool := NewStylePool(w)
	for _, r := range runs {
		if err := r.flush(names.Get(r.name), w, pool); err != nil {
			return fmt.Errorf("лист %s: %w", r.name, err)
		}
	}
	log.Printf("🎨 Стилей: %d", pool.Len())

	if err := w.SetProperties(props); err != nil {
		return fmt.Errorf("свойства документа: %w", err)
	}
	return nil
}
