package xml2xl

import (
	"fmt"
	"time"
)

// valToCell нормализует значение перед записью в Excel.
func valToCell(v interface{}) interface{} {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case []interface{}:
		return runText(vv)
	default:
		return toString(vv)
	}
}

// Convert — полный прогон: исходные файлы + шаблон -> .xlsx.
// Файл результата создаётся только если все фазы прошли без ошибок.
func Convert(opts Options) error {
	log := opts.logger()
	out, err := opts.OutputPath()
	if err != nil {
		return err
	}
	log.Printf("📊 Начинаем преобразование в Excel...")
	log.Printf("📁 Шаблон: %s", opts.Template)
	log.Printf("📄 Выходной файл: %s", out)
	log.Printf("📝 Исходных файлов: %d", len(opts.Sources))

	startTime := time.Now()

	log.Printf("🔄 Загрузка шаблона...")
	tmpl, err := LoadTemplate(opts.Template, opts.FilterTag, log)
	if err != nil {
		log.Printf("❌ Ошибка загрузки шаблона: %v", err)
		return err
	}
	log.Printf("✅ Шаблон загружен: листов %d", len(tmpl.Sheets))

	log.Printf("🔄 Чтение исходных данных...")
	root, err := LoadSources(opts.Sources)
	if err != nil {
		log.Printf("❌ Ошибка чтения исходных данных: %v", err)
		return err
	}

	backend := NewExcelBackend(log)
	if err := Render(tmpl, root, backend, opts); err != nil {
		log.Printf("❌ Ошибка рендеринга: %v", err)
		return err
	}
	log.Printf("✅ Рендеринг завершен")

	log.Printf("💾 Сохранение файла...")
	if err := backend.Save(out); err != nil {
		log.Printf("❌ Ошибка сохранения: %v", err)
		return fmt.Errorf("сохранение %s: %w", out, err)
	}

	log.Printf("✅ Excel файл создан за %v", time.Since(startTime))
	log.Printf("📄 Результат сохранен в: %s", out)
	return nil
}
