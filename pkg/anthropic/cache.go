package anthropic

// DefaultCacheTTL is the prompt cache lifetime used for research system
// prompts. Discovery and enrichment runs repeat the same instructions many
// times within a few minutes.
const DefaultCacheTTL = "5m"

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint on the last block. An empty ttl uses DefaultCacheTTL. Empty
// text yields no blocks.
func BuildCachedSystemBlocks(ttl string, texts ...string) []SystemBlock {
	if ttl == "" {
		ttl = DefaultCacheTTL
	}
	var out []SystemBlock
	for _, t := range texts {
		if t == "" {
			continue
		}
		out = append(out, SystemBlock{Text: t})
	}
	if len(out) > 0 {
		out[len(out)-1].CacheControl = &CacheControl{TTL: ttl}
	}
	return out
}
