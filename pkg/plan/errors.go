package plan

import "errors"

var (
	// ErrInvalidProfile indicates NODE_ENV is neither development nor production
	ErrInvalidProfile = errors.New("invalid build profile")
	// ErrOverlappingRules indicates two rules match the same file extension
	ErrOverlappingRules = errors.New("overlapping transformation rules")
	// ErrUnknownProcessor indicates a rule names a processor the builder does not provide
	ErrUnknownProcessor = errors.New("unknown processor")
	// ErrInvalidChain indicates a processor chain that cannot be composed
	ErrInvalidChain = errors.New("invalid processor chain")
	// ErrMissingChunk indicates a page or directive references a chunk with no entry
	ErrMissingChunk = errors.New("missing entry chunk")
	// ErrDuplicateChunk indicates an entry name declared twice or claimed by two pages
	ErrDuplicateChunk = errors.New("duplicate entry chunk")
	// ErrInvalidPages indicates a malformed page manifest
	ErrInvalidPages = errors.New("invalid page manifest")
)
