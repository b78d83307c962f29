// Package infra holds the adapters behind the core interfaces: the HTTP
// solver client, metrics sinks, MQTT publishing, Sentry monitoring and
// terminal rendering. Core packages never import from here.
package infra
