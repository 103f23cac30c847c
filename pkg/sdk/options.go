package recall

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "bolt"
	addrs    []string
	password string
	boltPath string

	embedder   Embedder
	provider   string
	dimensions int
	cache      bool

	dailyTokenLimit   int64
	monthlyTokenLimit int64
	rejectOverBudget  bool

	completer Completer
	language  string

	ragLimit         int
	ragThreshold     float64
	maxContextLength int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores vectors in a Valkey instance with the search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores vectors in a Redis instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithBolt stores vectors in a local bbolt file and searches them by brute force.
// The embedding cache and budget persistence are unavailable with this driver.
func WithBolt(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "bolt"
		c.boltPath = path
	})
}

// WithEmbedder sets the text embedding provider and the vector dimension it produces.
func WithEmbedder(e Embedder, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dimensions
	})
}

// WithProviderName labels budget logs and metrics. Default: "custom".
func WithProviderName(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.provider = name
	})
}

// WithEmbeddingCache caches embeddings in the Redis-protocol store.
func WithEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.cache = true
	})
}

// WithBudget limits embedding tokens per UTC day and month (0 = unlimited).
// With reject, calls over budget fail with ErrEmbeddingQuotaExceeded;
// otherwise they are only logged.
func WithBudget(daily, monthly int64, reject bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokenLimit = daily
		c.monthlyTokenLimit = monthly
		c.rejectOverBudget = reject
	})
}

// WithCompleter sets the generative model used by Ask.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cm
	})
}

// WithLanguage sets the language answers are written in. Default: English.
func WithLanguage(lang string) Option {
	return optionFunc(func(c *clientConfig) {
		c.language = lang
	})
}

// WithRetrieval tunes Ask: candidates per question, minimum similarity and
// the context size in characters. Zero values keep the defaults (5, 0.3, 3000).
func WithRetrieval(limit int, threshold float64, maxContextLength int) Option {
	return optionFunc(func(c *clientConfig) {
		c.ragLimit = limit
		c.ragThreshold = threshold
		c.maxContextLength = maxContextLength
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
