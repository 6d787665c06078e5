package chunker

import "strings"

// HeuristicExtractor finds function/class/declaration spans without a real
// parser: indent-scoped for indentation-delimited languages (spec 4.A
// names Python explicitly), brace-balanced otherwise. It is always
// available and is authoritative whenever no AST backend handles the
// language.
type HeuristicExtractor struct{}

// Extract implements SpanExtractor.
func (HeuristicExtractor) Extract(language, text string) []Span {
	keywords := declarationKeywords[language]
	if len(keywords) == 0 {
		return nil
	}
	lines := strings.Split(text, "\n")
	if indentLanguages[language] {
		return extractIndentScoped(lines, keywords)
	}
	return extractBraceBalanced(lines, keywords)
}

// extractIndentScoped handles Python-style significant indentation: a
// declaration line opens a span that runs until the next line at the same
// or shallower indentation (ignoring blank lines).
func extractIndentScoped(lines []string, keywords []string) []Span {
	var spans []Span
	var openStart int
	var openIndent int
	open := false

	closeSpan := func(endLine int) {
		if open {
			spans = append(spans, Span{StartLine: openStart, EndLine: endLine})
			open = false
		}
	}

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(raw) - len(trimmed)

		if open && indent <= openIndent {
			closeSpan(lineNo - 1)
		}
		if matchesKeyword(trimmed, keywords) && (!open || indent <= openIndent) {
			if !open {
				openStart = lineNo
				openIndent = indent
				open = true
			}
		}
	}
	closeSpan(len(lines))
	return spans
}

// extractBraceBalanced handles brace-delimited languages: a declaration
// line opens a span that runs until its opening "{" finds its matching
// "}", counted across the whole file. Every brace counts, including those
// inside string/rune literals and comments (good enough for chunk
// boundaries, not for compilation).
func extractBraceBalanced(lines []string, keywords []string) []Span {
	var spans []Span
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimLeft(lines[i], " \t")
		if !matchesKeyword(trimmed, keywords) {
			i++
			continue
		}
		start := i + 1
		depth := 0
		seenBrace := false
		end := start
		for j := i; j < len(lines); j++ {
			for _, r := range lines[j] {
				switch r {
				case '{':
					depth++
					seenBrace = true
				case '}':
					depth--
				}
			}
			end = j + 1
			if seenBrace && depth <= 0 {
				break
			}
		}
		spans = append(spans, Span{StartLine: start, EndLine: end})
		i = end
	}
	return spans
}

func matchesKeyword(trimmed string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}
