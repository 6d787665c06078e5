package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/config"
)

func testChunker() *Chunker {
	return New(config.DefaultChunkingConfig(), nil)
}

func TestChunkFile_UnknownExtensionYieldsNoChunks(t *testing.T) {
	c := testChunker()
	drafts, err := c.ChunkFile("repo-1", "README.md", []byte("# hello\n\nworld\n"))
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestChunkFile_SingleGoFunction(t *testing.T) {
	c := testChunker()
	src := "package main\n\nfunc DoRetention() int {\n" + strings.Repeat("\tx := 1\n", 25) + "\treturn x\n}\n"
	drafts, err := c.ChunkFile("repo-1", "a.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "go", drafts[0].Language)
	assert.Equal(t, 3, drafts[0].StartLine)
	assert.Contains(t, drafts[0].ChunkText, "func DoRetention")
}

func TestChunkFile_DropsBelowMinTokens(t *testing.T) {
	c := testChunker()
	src := "package main\n\nfunc f() {}\n"
	drafts, err := c.ChunkFile("repo-1", "tiny.go", []byte(src))
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestChunkFile_SplitsOverMaxTokens(t *testing.T) {
	cfg := config.DefaultChunkingConfig()
	cfg.MaxChunkTokens = 100
	cfg.MinChunkTokens = 1
	c := New(cfg, nil)

	body := strings.Repeat("\tdoSomethingLong()\n", 200)
	src := "package main\n\nfunc Big() {\n" + body + "}\n"
	drafts, err := c.ChunkFile("repo-1", "big.go", []byte(src))
	require.NoError(t, err)
	require.Greater(t, len(drafts), 1)
	for _, d := range drafts {
		assert.LessOrEqual(t, EstimateTokens(d.ChunkText), cfg.MaxChunkTokens+cfg.MaxChunkTokens/10)
	}
}

func TestChunkFile_FallbackFixedWindow(t *testing.T) {
	c := testChunker()
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("print(i)\n")
	}
	drafts, err := c.ChunkFile("repo-1", "script.py", []byte(b.String()))
	require.NoError(t, err)
	require.NotEmpty(t, drafts)
	assert.Equal(t, 1, drafts[0].StartLine)
}

func TestChunkFile_HashesAreContentDerived(t *testing.T) {
	c := testChunker()
	src := "package main\n\nfunc DoRetention() int {\n" + strings.Repeat("\tx := 1\n", 25) + "\treturn x\n}\n"
	drafts, err := c.ChunkFile("repo-1", "a.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, sha256Hex(drafts[0].ChunkText), drafts[0].ChunkHash)
	assert.Equal(t, sha256Hex(src), drafts[0].FileHash)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestEnrich_SemanticTagsAndCallLinks(t *testing.T) {
	c := testChunker()
	src := "package main\n\nfunc ValidateKYC() {\n" + strings.Repeat("\tauthCheck()\n", 20) + "}\n"
	drafts, err := c.ChunkFile("repo-1", "kyc.go", []byte(src))
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Contains(t, drafts[0].SemanticTags, "kyc")
	assert.Contains(t, drafts[0].SemanticTags, "auth")
	assert.Contains(t, drafts[0].CallLinks, "authCheck")
}

func TestEnrichConfigKeys(t *testing.T) {
	yaml := "retention_years: 5\nmfa_required: true\n"
	keys := EnrichConfigKeys("config.yaml", []byte(yaml))
	assert.ElementsMatch(t, []string{"retention_years", "mfa_required"}, keys)
	assert.Nil(t, EnrichConfigKeys("main.go", []byte("package main")))
}
