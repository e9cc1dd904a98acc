/*
Package httpserver runs the collection provisioning HTTP server.

The server mounts the collections API (see package api/collections) behind the
flashbots slog access logger, alongside the operational endpoints:

	GET /livez    liveness
	GET /readyz   readiness, 503 while draining
	GET /drain    mark the server not ready
	GET /undrain  mark the server ready again

pprof is mounted under /debug when enabled, and Prometheus metrics are served
on a separate listener when a metrics address is configured.
*/
package httpserver
