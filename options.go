package xml2xl

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// Options — параметры одного прогона преобразования.
type Options struct {
	// Sources — исходные файлы (.xml или .json); несколько файлов сливаются
	// под общий корень.
	Sources []string
	// Template — файл шаблона (.json, .yaml, .yml).
	Template string
	// Output — итоговый .xlsx. Пусто — имя первого исходного файла с
	// расширением .xlsx.
	Output string
	// Properties — свойства документа вида "title:Отчёт;author:Иванов".
	Properties string
	// FilterTag — активный тег для ключей cfg шаблона.
	FilterTag string
	// TextFormatter — форматтер текста узлов по умолчанию.
	TextFormatter string
	// Logger получает ход работы и предупреждения. nil — log.Default().
	Logger *log.Logger
}

// DefaultOptions возвращает параметры по умолчанию.
func DefaultOptions() Options {
	return Options{
		TextFormatter: DefaultFormatter,
	}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

func (o Options) textFormatter() (Formatter, error) {
	name := o.TextFormatter
	if name == "" {
		name = DefaultFormatter
	}
	return LookupFormatter(name)
}

// OutputPath — путь результата с учётом значения по умолчанию.
func (o Options) OutputPath() (string, error) {
	if o.Output != "" {
		if !strings.EqualFold(filepath.Ext(o.Output), ".xlsx") {
			return "", fmt.Errorf("имя выходного файла должно иметь расширение .xlsx: %s", o.Output)
		}
		return o.Output, nil
	}
	if len(o.Sources) == 0 {
		return "", fmt.Errorf("%w: нет исходных файлов", ErrMissingField)
	}
	src := o.Sources[0]
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".xlsx", nil
}

// ParseProperties разбирает строку "ключ:значение;ключ2:значение2".
func ParseProperties(s string) (map[string]string, error) {
	props := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, v, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("некорректное свойство %q (ожидается ключ:значение)", part)
		}
		props[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return props, nil
}
