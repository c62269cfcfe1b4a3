package vcf

// VariantParser is the pull interface for anything that yields variants:
// file decoders and region query streams alike.
type VariantParser interface {
	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*Variant, error)

	// Close releases resources held by the parser.
	Close() error
}
