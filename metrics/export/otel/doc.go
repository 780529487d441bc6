// Package otel publishes boardauth metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter; each histogram bucket
// becomes an Int64ObservableGauge with an _bucket_le_<bound> suffix. One
// callback reads the snapshot per collection cycle. The caller owns the
// MeterProvider.
package otel
