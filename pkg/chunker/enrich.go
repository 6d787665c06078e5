package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/complyance/auditor/pkg/model"
)

// semanticLexicon is the small fixed vocabulary spec 4.A names for
// semantic tagging: "kyc, storage, upi, auth, payment, compliance".
var semanticLexicon = []string{"kyc", "storage", "upi", "auth", "payment", "compliance"}

var (
	callPattern     = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	variablePattern = regexp.MustCompile(`\b(?:var|let|const)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	// assignPattern catches simple "name = " / "name :=" forms common to
	// Python and Go that the keyword-based variablePattern misses.
	assignPattern = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?::=|=)\s*[^=]`)
)

// languageKeywords are excluded from call_links since the call-site regex
// can't distinguish a control-flow keyword from a function call.
var languageKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "func": true, "function": true, "def": true, "class": true,
	"elif": true, "except": true, "with": true, "in": true,
}

// enrich fills in the best-effort fields of a chunk draft in place:
// call_links, variables, and semantic_tags. config_keys is left untouched.
// Enrichment never blocks or fails the chunk (spec 4.A "Enrichment
// (best-effort, never blocks)").
func enrich(c *model.CodeChunk) {
	c.CallLinks = extractCallLinks(c.ChunkText)
	c.Variables = extractVariables(c.ChunkText)
	c.SemanticTags = extractSemanticTags(c.ChunkText)
}

// EnrichConfigKeys extracts top-level keys from a JSON/YAML/env file's
// content, and returns nil for any other file. The indexer does not call
// it, so the keys it finds are not attached to any chunk.
func EnrichConfigKeys(filePath string, content []byte) []string {
	if !IsConfigFile(filePath) {
		return nil
	}
	text := string(content)
	seen := map[string]bool{}
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		var key string
		switch {
		case strings.Contains(trimmed, ":"):
			key = strings.TrimSpace(strings.SplitN(trimmed, ":", 2)[0])
		case strings.Contains(trimmed, "="):
			key = strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		}
		key = strings.Trim(key, `"'- `)
		if key == "" || strings.ContainsAny(key, "{}[]") || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func extractCallLinks(text string) []string {
	matches := callPattern.FindAllStringSubmatch(text, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		name := m[1]
		if languageKeywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func extractVariables(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	for _, m := range assignPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	sort.Strings(out)
	return out
}

func extractSemanticTags(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, term := range semanticLexicon {
		if strings.Contains(lower, term) {
			out = append(out, term)
		}
	}
	return out
}
