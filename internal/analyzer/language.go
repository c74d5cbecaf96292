package analyzer

import "codereviewsvc/internal/analyzer/lang"

// Language is an alias onto lang.Language so every detect/* subpackage
// can implement the Detector interface without importing analyzer.
type Language = lang.Language

const (
	LangJavaScript = lang.JavaScript
	LangTypeScript = lang.TypeScript
	LangPython     = lang.Python
	LangJava       = lang.Java
	LangGo         = lang.Go
	LangRuby       = lang.Ruby
	LangPHP        = lang.PHP
	LangCSharp     = lang.CSharp
	LangCPP        = lang.CPP
)

// DetectLanguage routes by file extension, falling back to a content
// sniff and finally to javascript (spec §4.5.2).
func DetectLanguage(fileName string, content []byte) Language {
	return lang.Detect(fileName, content)
}

// IsJSFamily reports whether l gates JS/TS-only stages (async,
// semantic, auth, linter).
func IsJSFamily(l Language) bool {
	return lang.IsJSFamily(l)
}
