// Package api defines one protocol.Spec per remote operation: offline task
// management, file and directory management, space and user queries, and the
// two upload negotiation endpoints. Specs only describe requests and decode
// raw records; turning records into domain values is left to the facades in
// package cloud115.
package api
