// Package protocol executes request specs against the remote cloud-storage
// API. A Session owns the authentication cookies and user agent, runs each
// Spec over HTTP, strips the {state, ...} envelope and returns the decoded
// payload, or a TransportError / RemoteProtocolError. Paginate walks
// multi-page listings lazily with either an offset-indexed or a page-indexed
// Strategy.
package protocol
