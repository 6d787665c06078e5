package chunker

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps a recognized file extension to its language
// name. An extension outside this set yields zero chunks (spec 4.A).
var extensionLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
	".cs":   "csharp",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rs":   "rust",
	".kt":   "kotlin",
	".scala": "scala",
}

// configExtensions mark config files rather than code: the indexer still
// walks them, but they yield no chunks. EnrichConfigKeys can read their
// top-level keys; the indexer does not call it, so no chunk's config_keys
// is filled from them.
var configExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".env":  true,
}

// DetectLanguage returns the language for filePath's extension, or "" if
// unrecognized.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	return extensionLanguages[ext]
}

// IsConfigFile reports whether filePath is a JSON/YAML/env file eligible
// for config-key extraction during enrichment.
func IsConfigFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return configExtensions[ext] || strings.HasSuffix(filePath, ".env")
}

// indentLanguages use significant indentation for scoping (Python), so the
// heuristic extractor scans indent depth rather than brace balance.
var indentLanguages = map[string]bool{
	"python": true,
}

// declarationKeywords are the per-language tokens the heuristic extractor
// looks for at the start of a (possibly indented) line to recognize a new
// top-level span.
var declarationKeywords = map[string][]string{
	"go":         {"func ", "type "},
	"python":     {"def ", "class ", "async def "},
	"javascript": {"function ", "class ", "const ", "async function "},
	"typescript": {"function ", "class ", "const ", "interface ", "async function "},
	"java":       {"public ", "private ", "protected ", "class ", "interface "},
	"csharp":     {"public ", "private ", "protected ", "class ", "interface "},
	"ruby":       {"def ", "class ", "module "},
	"php":        {"function ", "class "},
	"c":          {},
	"cpp":        {"class "},
	"rust":       {"fn ", "struct ", "impl ", "trait "},
	"kotlin":     {"fun ", "class "},
	"scala":      {"def ", "class ", "object "},
}
