// Package otel wires optional OpenTelemetry tracing into govgate.
// Off unless --otel is given.
package otel

import (
	"errors"
)

// OTLP exporter protocols
const (
	ProtocolHTTP = "otlphttp"
	ProtocolGRPC = "otlpgrpc"
)

// ServiceName reported on every span
const ServiceName = "govgate"

// Config OTel options from the --otel-* flags
type Config struct {
	Enabled     bool
	Endpoint    string // "http://localhost:4318" or "localhost:4317"
	Protocol    string
	Insecure    bool
	ServiceName string
	SampleRatio float64 // 0..1
}

func DefaultConfig() Config {
	return Config{
		Protocol:    ProtocolHTTP,
		ServiceName: ServiceName,
		SampleRatio: 1.0,
	}
}

// Validate only checks enabled configs
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return errors.New("otel: protocol must be 'otlphttp' or 'otlpgrpc'")
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("otel: sample-ratio must be between 0 and 1")
	}
	return nil
}

func (c Config) endpoint(env func(string) string) string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if e := env("OTEL_EXPORTER_OTLP_ENDPOINT"); e != "" {
		return e
	}
	if c.Protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318"
}

func (c Config) sampler() float64 {
	switch {
	case c.SampleRatio < 0:
		return 0
	case c.SampleRatio > 1:
		return 1
	}
	return c.SampleRatio
}
