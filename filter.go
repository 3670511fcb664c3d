package xml2xl

import "strings"

// skipByTag решает, выбрасывать ли элемент списка шаблона для активного
// тега. ignore выбрасывает всегда; без активного тега или без cfg элемент
// остаётся. Иначе cfg — список тегов через запятую: первый "!тег" решает
// сам (совпал — выбросить, нет — оставить), обычный тег оставляет элемент
// при совпадении, а если ничего не совпало, элемент выбрасывается.
func skipByTag(v interface{}, tag string) bool {
	m, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	if _, ok := m["ignore"]; ok {
		return true
	}
	if tag == "" {
		return false
	}
	cfg, ok := m["cfg"]
	if !ok {
		return false
	}
	for _, t := range strings.Split(toString(cfg), ",") {
		t = strings.TrimSpace(t)
		if strings.HasPrefix(t, "!") {
			return tag == strings.TrimSpace(t[1:])
		}
		if tag == t {
			return false
		}
	}
	return true
}

// copyWithFilter возвращает копию разобранного шаблона без отфильтрованных
// элементов списков. Исходное дерево не меняется.
func copyWithFilter(v interface{}, tag string) interface{} {
	switch vv := v.(type) {
	case []interface{}:
		out := make([]interface{}, 0, len(vv))
		for _, it := range vv {
			if skipByTag(it, tag) {
				continue
			}
			out = append(out, copyWithFilter(it, tag))
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, it := range vv {
			out[k] = copyWithFilter(it, tag)
		}
		return out
	default:
		return v
	}
}
