package xml2xl

import "strings"

// Последовательность фрагментов (run sequence): строки вперемешку со
// словарями стилей; словарь стиля относится к следующему за ним тексту.

func asStyle(v interface{}) (Style, bool) {
	switch vv := v.(type) {
	case Style:
		return vv, true
	case map[string]interface{}:
		return Style(vv), true
	default:
		return nil, false
	}
}

// flattenText рекурсивно разворачивает литерал шаблона. Если внутри нет ни
// одного словаря стиля, plain == true и результат — единая строка text.
func flattenText(v interface{}) (text string, runs []interface{}, plain bool) {
	var sb strings.Builder
	plain = true
	var walk func(interface{})
	walk = func(x interface{}) {
		if x == nil {
			return
		}
		if st, ok := asStyle(x); ok {
			plain = false
			runs = append(runs, st.Clone())
			return
		}
		switch xx := x.(type) {
		case []interface{}:
			for _, it := range xx {
				walk(it)
			}
		default:
			s := toString(xx)
			sb.WriteString(s)
			runs = append(runs, s)
		}
	}
	walk(v)
	return sb.String(), runs, plain
}

// runText — только текст последовательности, без стилей.
func runText(runs []interface{}) string {
	var sb strings.Builder
	for _, r := range runs {
		if s, ok := r.(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func hasStyle(runs []interface{}) bool {
	for _, r := range runs {
		if _, ok := asStyle(r); ok {
			return true
		}
	}
	return false
}

func sameStyle(a, b Style) bool {
	ka, err := styleKey(a)
	if err != nil {
		return false
	}
	kb, err := styleKey(b)
	return err == nil && ka == kb
}

// OptimizeRuns приводит последовательность к минимальному виду, который
// принимает запись rich text:
//   - соседние стили сливаются (последний ключ побеждает);
//   - стили в конце отбрасываются (dropped — их количество);
//   - соседние строки склеиваются;
//   - стилизованные пустые строки выкидываются;
//   - подряд идущие пары (стиль, текст) с одинаковым стилем объединяются.
func OptimizeRuns(src []interface{}) (out []interface{}, dropped int) {
	s := make([]interface{}, 0, len(src))
	for _, x := range src {
		if st, ok := asStyle(x); ok {
			if len(s) > 0 {
				if prev, ok := asStyle(s[len(s)-1]); ok {
					s[len(s)-1] = prev.Merge(st)
					continue
				}
			}
			s = append(s, st.Clone())
			continue
		}
		s = append(s, toString(x))
	}
	for len(s) > 0 {
		if _, ok := asStyle(s[len(s)-1]); !ok {
			break
		}
		s = s[:len(s)-1]
		dropped++
	}

	l := len(s)
	for i := 0; i < l; {
		if str, ok := s[i].(string); ok {
			for i+1 < l {
				next, ok := s[i+1].(string)
				if !ok {
					break
				}
				str += next
				i++
			}
			out = append(out, str)
			i++
			continue
		}
		st, _ := asStyle(s[i])
		text := s[i+1].(string)
		if text == "" {
			i += 2
			continue
		}
		for i+3 < l {
			nst, ok := asStyle(s[i+2])
			if !ok || !sameStyle(st, nst) {
				break
			}
			text += s[i+3].(string)
			i += 2
		}
		out = append(out, st, text)
		i += 2
	}

	// текст, идущий сразу за стилизованным фрагментом, приклеивается к нему
	merged := out[:0]
	for _, x := range out {
		if str, ok := x.(string); ok && len(merged) > 0 {
			if prev, ok := merged[len(merged)-1].(string); ok {
				merged[len(merged)-1] = prev + str
				continue
			}
		}
		merged = append(merged, x)
	}
	return merged, dropped
}
