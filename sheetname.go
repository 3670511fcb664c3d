package xml2xl

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// MaxSheetNameLen — предел длины имени листа в Excel.
const MaxSheetNameLen = 31

var rxSheetNameJunk = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// SheetNames отображает логические имена листов в выходные: очищенные,
// не длиннее 31 символа и уникальные.
type SheetNames struct {
	out  map[string]string
	used map[string]string
}

func NewSheetNames(logical []string) (*SheetNames, error) {
	n := &SheetNames{out: make(map[string]string), used: make(map[string]string)}
	for _, name := range logical {
		if err := n.add(name); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// shortenSheetName отрезает ведущие компоненты пути (до первого '/'),
// а если их нет — по одному символу, пока имя не влезет в предел.
func shortenSheetName(name string) string {
	r := []rune(name)
	for len(r) > MaxSheetNameLen {
		cut := 1
		for i, c := range r {
			if c == '/' {
				cut = i + 1
				break
			}
		}
		r = r[cut:]
	}
	return string(r)
}

func (n *SheetNames) add(logical string) error {
	if _, ok := n.out[logical]; ok {
		return fmt.Errorf("%w: лист %q объявлен дважды", ErrSheetName, logical)
	}
	name := rxSheetNameJunk.ReplaceAllString(shortenSheetName(logical), ".")
	if name == "" {
		return fmt.Errorf("%w: пустое имя листа", ErrSheetName)
	}
	if _, taken := n.used[strings.ToLower(name)]; taken {
		sum := md5.Sum([]byte(logical))
		h := hex.EncodeToString(sum[:])
		r := []rune(name)
		if len(r) > MaxSheetNameLen-6 {
			r = r[:MaxSheetNameLen-6]
		}
		name = string(r) + h[len(h)-6:]
		if prev, taken := n.used[strings.ToLower(name)]; taken {
			return fmt.Errorf("%w: %q и %q дают одинаковое имя %q", ErrSheetName, prev, logical, name)
		}
	}
	n.out[logical] = name
	n.used[strings.ToLower(name)] = logical
	return nil
}

// Get возвращает выходное имя; неизвестные имена возвращаются как есть.
func (n *SheetNames) Get(logical string) string {
	if name, ok := n.out[logical]; ok {
		return name
	}
	return logical
}
