// Package tlsroots builds the client TLS configuration for the lobby
// service: system roots plus an optional CA bundle, and an optional client
// certificate that can be rotated on disk without restarting.
package tlsroots
