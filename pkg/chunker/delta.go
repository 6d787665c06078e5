package chunker

import "github.com/complyance/auditor/pkg/model"

// ClassifyDelta compares freshly-chunked drafts for one file against the
// chunks currently stored for that (repo_id, file_path) and assigns each
// draft's DeltaType in place (spec 4.D): a draft whose chunk_hash matches
// a prior chunk is unchanged and inherits that chunk's embedding/summary
// so the enrichment stage can skip it; a draft at the same ordinal
// position as a prior chunk but with a different hash is modified and
// records previous_hash; everything else is added. Prior chunks matched
// to no draft are returned as removed.
func ClassifyDelta(drafts []*model.CodeChunk, prior []*model.CodeChunk) (removed []*model.CodeChunk) {
	byHash := make(map[string]*model.CodeChunk, len(prior))
	for _, p := range prior {
		byHash[p.ChunkHash] = p
	}

	matched := make(map[string]bool, len(prior))
	unmatchedPrior := make([]*model.CodeChunk, 0, len(prior))
	for _, p := range prior {
		unmatchedPrior = append(unmatchedPrior, p)
	}

	for _, d := range drafts {
		if old, ok := byHash[d.ChunkHash]; ok {
			d.DeltaType = model.DeltaUnchanged
			d.Embedding = old.Embedding
			d.NLSummary = old.NLSummary
			matched[old.ChunkHash] = true
		}
	}

	// Second pass: remaining drafts are either modified (same ordinal
	// slot as an unmatched prior chunk) or newly added.
	var remainingPrior []*model.CodeChunk
	for _, p := range unmatchedPrior {
		if !matched[p.ChunkHash] {
			remainingPrior = append(remainingPrior, p)
		}
	}

	idx := 0
	for _, d := range drafts {
		if d.DeltaType == model.DeltaUnchanged {
			continue
		}
		if idx < len(remainingPrior) {
			d.DeltaType = model.DeltaModified
			d.PreviousHash = remainingPrior[idx].ChunkHash
			idx++
		} else {
			d.DeltaType = model.DeltaAdded
		}
	}

	for ; idx < len(remainingPrior); idx++ {
		removed = append(removed, remainingPrior[idx])
	}
	return removed
}
