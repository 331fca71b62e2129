package csrgo

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures a Store.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
}

// WithLogger sets the logger used for ingestion and codec events.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the collector notified after ingestion, save and load.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(c MetricsCollector) Option {
	return func(o *options) {
		if c == nil {
			c = NoopMetricsCollector{}
		}
		o.metricsCollector = c
	}
}
