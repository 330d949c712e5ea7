// Package api defines the request and response messages of the settlement
// service. Messages are plain structs carried as JSON by Codec; amounts are
// decimal strings with at most two fractional digits.
package api
