// Package client talks to the remote lobby service over JSON/HTTP.
//
// Every call returns either a full lobby snapshot or a *domain.DomainError:
//
//   - transport failures, timeouts and 5xx responses map to
//     domain.ErrTransientNetwork
//   - 404 maps to domain.ErrLobbyNotFound
//   - any other 4xx maps to domain.ErrClientRejected
//   - an undecodable body maps to domain.ErrMalformedResponse
//
// A {"code","message"} error body is kept in the error details.
package client
