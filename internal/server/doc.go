// Package server exposes a polled CyberQ controller over HTTP.
//
// # Endpoints
//
//	GET  /health              200 "OK" after a successful refresh, 503 otherwise
//	GET  /metrics             Prometheus exposition (when a collector is wired)
//	GET  /api/sensors         identity, availability and every decoded sensor
//	GET  /api/sensors/{key}   one sensor; aliases resolve to the canonical key
//	POST /api/sensors/{key}   {"value": ...} writes one sensor
//	GET  /ws                  websocket; pushes the /api/sensors document after
//	                          every refresh or write
//
// Write failures map onto status codes by error class: invalid input and
// read-only sensors are 400, unknown sensors 404, and controller or transport
// failures 502.
//
// The server never talks to the controller directly; reads come from the
// poller's last published state and writes go through the poller so they
// are serialized with refreshes.
package server
