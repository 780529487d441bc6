// Package prometheus renders boardauth metrics in the Prometheus text
// exposition format. Counters are named boardauth_*_total; the only
// histogram is boardauth_authenticate_latency_seconds.
//
// Nothing is registered globally: mount the Exporter wherever /metrics
// should live.
package prometheus
