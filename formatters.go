package xml2xl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Formatter — обработчик текста узла перед записью в ячейку (ключ sfmt).
type Formatter func(string) string

// DefaultFormatter — имя форматтера текста по умолчанию.
const DefaultFormatter = "xml_strip"

// XMLStrip схлопывает любые пробельные последовательности в один пробел и
// обрезает края.
func XMLStrip(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var rxFuseSep = regexp.MustCompile(`;\s*`)

// Fuse — как XMLStrip, но каждая ';' начинает новую строку.
func Fuse(s string) string {
	return strings.TrimSpace(rxFuseSep.ReplaceAllString(XMLStrip(s), "\n"))
}

// hexFormatter печатает целое (десятичное, 0x.., 0o.., 0b..) как 0x с
// дополнением нулями до digits знаков; нечисловой текст не меняется.
func hexFormatter(digits int) Formatter {
	return func(s string) string {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
		if err != nil {
			return s
		}
		if digits == 0 {
			return fmt.Sprintf("0x%x", n)
		}
		return fmt.Sprintf("0x%0*x", digits, n)
	}
}

var formatters = map[string]Formatter{
	"xml_strip":      XMLStrip,
	"fuse_formatter": Fuse,
	"hex":            hexFormatter(0),
	"hex1":           hexFormatter(1),
	"hex2":           hexFormatter(2),
	"hex3":           hexFormatter(3),
	"hex4":           hexFormatter(4),
	"hex5":           hexFormatter(5),
	"hex6":           hexFormatter(6),
}

// LookupFormatter возвращает форматтер по имени.
func LookupFormatter(name string) (Formatter, error) {
	f, ok := formatters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormatter, name)
	}
	return f, nil
}
