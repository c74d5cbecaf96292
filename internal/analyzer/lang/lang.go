// Package lang holds the Language routing type on its own so both the
// analyzer package and its detect/* subpackages can share it without
// an import cycle back through analyzer.
package lang

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Language is the routing key that gates which detector stages run.
type Language string

const (
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Python     Language = "python"
	Java       Language = "java"
	Go         Language = "go"
	Ruby       Language = "ruby"
	PHP        Language = "php"
	CSharp     Language = "csharp"
	CPP        Language = "cpp"
)

var extensionLanguages = map[string]Language{
	".js":   JavaScript,
	".jsx":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".py":   Python,
	".java": Java,
	".go":   Go,
	".rb":   Ruby,
	".php":  PHP,
	".cs":   CSharp,
	".c":    CPP,
	".cpp":  CPP,
	".h":    CPP,
}

// Detect routes by file extension, falling back to a content sniff and
// finally to javascript (spec §4.5.2).
func Detect(fileName string, content []byte) Language {
	ext := strings.ToLower(filepath.Ext(fileName))
	if l, ok := extensionLanguages[ext]; ok {
		return l
	}
	if looksLikeJavaClass(content) {
		return Java
	}
	if looksLikePython(content) {
		return Python
	}
	return JavaScript
}

func looksLikeJavaClass(content []byte) bool {
	return bytes.Contains(content, []byte("public class")) || bytes.Contains(content, []byte("private class"))
}

func looksLikePython(content []byte) bool {
	return bytes.Contains(content, []byte("import ")) && (bytes.Contains(content, []byte("def ")) || bytes.Contains(content, []byte("    def ")))
}

// IsJSFamily reports whether lang gates JS/TS-only stages (async,
// semantic, auth, linter).
func IsJSFamily(l Language) bool {
	return l == JavaScript || l == TypeScript
}
