package anthropic

// BuildCachedSystemBlocks constructs a system block with a cache breakpoint.
// A batch of coding runs shares one prompt, so every run after the first
// reads the prompt from cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
