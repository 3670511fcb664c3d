// Command xml2xl преобразует XML/JSON в оформленную книгу Excel по шаблону.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/glexey/xml2xl"
)

var (
	sources    []string
	cfgPath    string
	outputPath string
	filterTag  string
	properties string
	formatter  string
)

// envOr — значение переменной окружения XML2XL_<name> или dflt.
func envOr(name, dflt string) string {
	if v, ok := os.LookupEnv("XML2XL_" + name); ok {
		return v
	}
	return dflt
}

func main() {
	// .env необязателен: он только задаёт значения флагов по умолчанию
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "xml2xl -x input.xml [-x more.xml] -c template.json",
		Short: "Преобразование XML/JSON в оформленную книгу Excel по шаблону",
		Long: `xml2xl заполняет книгу Excel из одного или нескольких XML (или JSON)
документов по декларативному шаблону JSON/YAML: где искать данные, куда
класть значения, как их оформлять и как связывать ячейки разных листов.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	var defSources []string
	if v := envOr("XML", ""); v != "" {
		defSources = strings.Fields(v)
	}
	rootCmd.Flags().StringSliceVarP(&sources, "xml", "x", defSources, "Исходные файлы .xml/.json или glob-шаблоны")
	rootCmd.Flags().StringVarP(&cfgPath, "cfg", "c", envOr("CFG", ""), "Файл шаблона (.json/.yaml)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", envOr("OUTPUT", ""), "Выходной файл .xlsx (по умолчанию: первый исходный файл с расширением .xlsx)")
	rootCmd.Flags().StringVarP(&filterTag, "filtercfg", "C", envOr("FILTERCFG", ""), "Активный тег для ключей cfg шаблона")
	rootCmd.Flags().StringVarP(&properties, "properties", "p", envOr("PROPERTIES", ""), "Свойства документа: свойство1:значение;свойство2:значение")
	rootCmd.Flags().StringVar(&formatter, "text-formatter", envOr("TEXT_FORMATTER", xml2xl.DefaultFormatter), "Форматтер текста узлов по умолчанию")

	if err := rootCmd.Execute(); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if len(sources) == 0 {
		return fmt.Errorf("нет исходных файлов: укажите -x/--xml или XML2XL_XML")
	}
	if cfgPath == "" {
		return fmt.Errorf("нет шаблона: укажите -c/--cfg или XML2XL_CFG")
	}

	var files []string
	for _, pattern := range sources {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("некорректный шаблон имени %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("нет файлов по шаблонам %s", strings.Join(sources, ", "))
	}

	opts := xml2xl.DefaultOptions()
	opts.Sources = files
	opts.Template = cfgPath
	opts.Output = outputPath
	opts.FilterTag = filterTag
	opts.Properties = properties
	opts.TextFormatter = formatter

	if err := xml2xl.Convert(opts); err != nil {
		return fmt.Errorf("преобразование не выполнено: %w", err)
	}
	return nil
}
