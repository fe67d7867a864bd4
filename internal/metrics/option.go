package metrics

// ExporterKind selects a metrics exporter backend.
type ExporterKind string

const (
	PrometheusExporter ExporterKind = "prometheus"
	CollectorExporter  ExporterKind = "otlp_collector"
)

// ExporterCfg configures one exporter.
type ExporterCfg struct {
	Kind     ExporterKind
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// Config aggregates the metric provider configuration.
type Config struct {
	ServiceName string
	Exporters   []ExporterCfg
}

// OptionFn mutates the metric provider configuration.
type OptionFn func(Config) Config

// WithServiceName sets the OTEL service name on the emitted resource.
func WithServiceName(serviceName string) OptionFn {
	return func(cfg Config) Config {
		cfg.ServiceName = serviceName
		return cfg
	}
}

// WithExporter appends an exporter.
func WithExporter(exporter ExporterCfg) OptionFn {
	return func(cfg Config) Config {
		cfg.Exporters = append(cfg.Exporters, exporter)
		return cfg
	}
}

// WithPrometheus appends the Prometheus pull exporter.
func WithPrometheus() OptionFn {
	return WithExporter(ExporterCfg{Kind: PrometheusExporter})
}

// WithCollector appends an OTLP gRPC push exporter.
func WithCollector(endpoint string, headers map[string]string, insecure bool) OptionFn {
	return WithExporter(ExporterCfg{
		Kind:     CollectorExporter,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: insecure,
	})
}
