package main

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys double as the English text.
const (
	msgShort     = "Convert each sheet of an Excel workbook into a CSV or TSV file"
	msgLong      = "excel2csv writes every sheet of the input workbook to <sheet name>.csv\n(or .tsv with --tab), rendering each cell's evaluated value as text."
	msgInput     = "input workbook file (.xlsx, .xlsm, .xls)"
	msgCSV       = "write comma separated values to .csv files (default)"
	msgTab       = "write tab separated values to .tsv files"
	msgQuote     = "enclose values in double quotes"
	msgCharset   = "character encoding of the output files"
	msgOutputDir = "directory for the output files"
	msgFailFast  = "stop at the first sheet that cannot be written"
	msgLang      = "language of the help text (en, ja)"
	msgVerbose   = "report diagnostics in detail"
	msgNoInput   = "input file must be specified"
	msgBothInput = "input file given both as --input and as an argument"
)

var japanese = map[string]string{
	msgShort:     "Excelブックの各シートをCSVまたはTSVファイルに変換します",
	msgLong:      "excel2csv は入力ブックの各シートを <シート名>.csv (--tab 指定時は .tsv)\nに書き出します。セルの値は計算結果をテキストとして出力します。",
	msgInput:     "入力するExcelファイル (.xlsx, .xlsm, .xls)",
	msgCSV:       "カンマ区切りで .csv ファイルに出力します (既定)",
	msgTab:       "タブ区切りで .tsv ファイルに出力します",
	msgQuote:     "値をダブルクォートで囲みます",
	msgCharset:   "出力ファイルの文字コード",
	msgOutputDir: "出力先ディレクトリ",
	msgFailFast:  "書き込めないシートがあった時点で処理を中止します",
	msgLang:      "ヘルプの表示言語 (en, ja)",
	msgVerbose:   "詳細な診断情報を出力します",
	msgNoInput:   "入力ファイルを指定してください",
	msgBothInput: "入力ファイルが --input と引数の両方で指定されています",
}

var supportedLanguages = []language.Tag{language.English, language.Japanese}

// newPrinter returns a printer for the closest supported language to tag.
func newPrinter(tag language.Tag) *message.Printer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, text := range japanese {
		b.SetString(language.Japanese, key, text)
	}
	_, index, _ := language.NewMatcher(supportedLanguages).Match(tag)
	return message.NewPrinter(supportedLanguages[index], message.Catalog(b))
}

// detectLanguage picks the help language from a --lang argument, then from
// the usual locale environment variables.
func detectLanguage(args []string, getenv func(string) string) language.Tag {
	for i, arg := range args {
		if v, ok := strings.CutPrefix(arg, "--lang="); ok {
			return parseLocale(v)
		}
		if arg == "--lang" && i+1 < len(args) {
			return parseLocale(args[i+1])
		}
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := getenv(key); v != "" {
			return parseLocale(v)
		}
	}
	return language.English
}

// parseLocale accepts BCP 47 tags and POSIX locale names such as ja_JP.UTF-8.
func parseLocale(s string) language.Tag {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || s == "C" || s == "POSIX" {
		return language.English
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.English
	}
	return tag
}
