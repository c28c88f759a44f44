package domain

// Pipeline defaults, overridable per deployment and per request.
const (
	DefaultCollection         = "airline_docs_pg"
	DefaultTopK               = 5
	MaxTopK                   = 20
	DefaultThreshold          = 0.7
	DefaultReturnCount        = 3
	MaxQueryLength            = 1000
	DefaultSourcePreviewChars = 200
	DefaultMaxTokens          = 384
	DefaultTemperature        = 0.5
)
