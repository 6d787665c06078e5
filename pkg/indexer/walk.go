package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/complyance/auditor/pkg/chunker"
)

// skipDirs lists dependency/VCS directories excluded from every walk
// (spec 4.E step 3: "skip .git and dependency directories").
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
}

const bytesPerMB = 1024 * 1024

// walkFiles lists every file path at ref that the indexer goes on to
// fetch: outside an excluded directory, and either in a language
// chunker.DetectLanguage recognizes or a config file. Files with any other
// extension are skipped here. Config files are kept although the chunker
// yields zero chunks for them. The max-size check happens later, in
// fetchFile.
func (idx *Indexer) walkFiles(ctx context.Context, r RepoRef, ref string, credential string) ([]string, error) {
	all, err := idx.repoSource.FileTree(ctx, r.CloneURL, ref, credential)
	if err != nil {
		return nil, fmt.Errorf("listing file tree: %w", err)
	}

	var out []string
	for _, p := range all {
		if isExcludedPath(p) {
			continue
		}
		lang := chunker.DetectLanguage(p)
		if lang == "" && !chunker.IsConfigFile(p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func isExcludedPath(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

// fetchFile retrieves one file's bytes, skipping (with a nil, nil return)
// any file over the configured max size (spec 4.E step 3).
func (idx *Indexer) fetchFile(ctx context.Context, r RepoRef, ref, filePath, credential string) ([]byte, error) {
	content, err := idx.repoSource.File(ctx, r.CloneURL, ref, filePath, credential)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", filePath, err)
	}
	maxBytes := idx.chunkingCfg.MaxFileSizeMB * bytesPerMB
	if maxBytes > 0 && len(content) > maxBytes {
		return nil, nil
	}
	return content, nil
}

// RepoRef is the minimal repo identity the indexer needs to talk to a
// RepoSource, decoupled from model.Repo so callers can index an
// as-yet-unpersisted repo reference during tests.
type RepoRef struct {
	ID             string
	InstallationID int64
	CloneURL       string
}
