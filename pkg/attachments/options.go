package attachments

import (
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Option configures NewClassLoader and NewCache.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	compilation wazero.CompilationCache
	metrics     *Metrics
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCompilationCache shares compiled modules between loaders.
func WithCompilationCache(cache wazero.CompilationCache) Option {
	return func(o *options) { o.compilation = cache }
}

// WithMetrics records cache activity in m. Ignored by NewClassLoader.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}
