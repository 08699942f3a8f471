// Package logging provides structured logging for the cyberq tools.
//
// It wraps a package-global zap logger with level helpers and a few
// domain-specific functions for controller traffic, the local API and MQTT.
//
// # Log Levels
//
//   - Debug: controller requests/responses, page fields, raw page dumps
//   - Info: poll cycles, mode detection, API requests, broker connections
//   - Warn: failed polls, values that did not decode, rejected writes
//   - Error: startup failures, listener errors
//
// # Silent by Default
//
// Nothing is logged until a level is passed to Initialize or CYBERQ_LOG_LEVEL
// is set, so CLI output stays clean:
//
//	CYBERQ_LOG_LEVEL=debug cyberq show --device 192.168.1.50
//
// Logs go to stderr in zap's console format so they never mix with JSON
// written to stdout:
//
//	2026-05-02T18:04:11.412+0100  DEBUG  cyberq/client.go:212  Controller request  {"method": "GET", "url": "http://192.168.1.50:80/status.xml"}
//
// # Domain Helpers
//
//	logging.LogDeviceRequest("POST", url)
//	logging.LogDeviceResponse(url, resp.StatusCode, len(body), time.Since(start))
//	logging.LogMQTTMessage("publish", topic, payload)
//	logging.LogRawBytes("status.xml", body)
package logging
