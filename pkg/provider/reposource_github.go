package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GitHubRepoSource implements RepoSource against the GitHub REST Contents
// API, grounded on the teacher's runbook.GitHubClient. A Contents-API walk
// is used instead of a literal git clone so the indexer never needs a
// working directory or a git binary on the worker host; "clone" resolves
// only the ref's current commit SHA.
type GitHubRepoSource struct {
	httpClient *http.Client
}

// NewGitHubRepoSource creates a RepoSource backed by the GitHub REST API.
func NewGitHubRepoSource(timeout time.Duration) *GitHubRepoSource {
	return &GitHubRepoSource{httpClient: &http.Client{Timeout: timeout}}
}

type githubCommitResponse struct {
	SHA string `json:"sha"`
}

// Clone resolves ref to its current commit SHA. url is an owner/repo
// GitHub URL; credential, if non-empty, is sent as a bearer token.
func (g *GitHubRepoSource) Clone(ctx context.Context, url, ref, _ string, credential string) (string, error) {
	owner, repo, err := parseGitHubURL(url)
	if err != nil {
		return "", err
	}
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/commits/%s", owner, repo, ref)

	var commit githubCommitResponse
	if err := g.getJSON(ctx, apiURL, credential, &commit); err != nil {
		return "", fmt.Errorf("resolving commit for %s@%s: %w", url, ref, err)
	}
	return commit.SHA, nil
}

type githubTreeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// FileTree lists every blob path in the repository tree at ref.
func (g *GitHubRepoSource) FileTree(ctx context.Context, url, ref string, credential string) ([]string, error) {
	owner, repo, err := parseGitHubURL(url)
	if err != nil {
		return nil, err
	}
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/git/trees/%s?recursive=1", owner, repo, ref)

	var tree githubTreeResponse
	if err := g.getJSON(ctx, apiURL, credential, &tree); err != nil {
		return nil, fmt.Errorf("listing tree for %s@%s: %w", url, ref, err)
	}

	var paths []string
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}
	return paths, nil
}

type githubContentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// File fetches the raw bytes of path at ref via the Contents API.
func (g *GitHubRepoSource) File(ctx context.Context, url, ref, path string, credential string) ([]byte, error) {
	owner, repo, err := parseGitHubURL(url)
	if err != nil {
		return nil, err
	}
	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/contents/%s?ref=%s", owner, repo, path, ref)

	var content githubContentResponse
	if err := g.getJSON(ctx, apiURL, credential, &content); err != nil {
		return nil, fmt.Errorf("fetching %s@%s:%s: %w", url, ref, path, err)
	}
	if content.Encoding != "base64" {
		return nil, fmt.Errorf("unexpected content encoding %q for %s", content.Encoding, path)
	}
	return base64.StdEncoding.DecodeString(content.Content)
}

func (g *GitHubRepoSource) getJSON(ctx context.Context, url, credential string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API returned HTTP %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseGitHubURL(url string) (owner, repo string, err error) {
	rest := url
	switch {
	case strings.HasPrefix(url, "https://github.com/"):
		rest = strings.TrimPrefix(url, "https://github.com/")
	case strings.HasPrefix(url, "git@github.com:"):
		rest = strings.TrimPrefix(url, "git@github.com:")
	}
	rest = strings.TrimSuffix(rest, ".git")

	owner, repo, ok := strings.Cut(rest, "/")
	if !ok {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", url)
	}
	return owner, repo, nil
}
