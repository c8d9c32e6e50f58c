package coleta

import (
	"github.com/Lucaascf/coleta-produtos/coleta/internal/browser"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/cache"
	"github.com/Lucaascf/coleta-produtos/coleta/internal/pipeline"
)

// Sentinel errors callers match with errors.Is.
var (
	ErrInvalidQuery        = pipeline.ErrInvalidQuery
	ErrExtractionExhausted = pipeline.ErrExtractionExhausted
	ErrCacheMiss           = cache.ErrMiss
	ErrCacheWrite          = cache.ErrWrite
	ErrSessionInit         = browser.ErrSessionInit
	ErrNavigationTimeout   = browser.ErrNavigationTimeout
	ErrNavigationBlocked   = browser.ErrNavigationBlocked
)
