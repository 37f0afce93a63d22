// Package upload negotiates uploads with the remote service.
//
// Negotiation is a two step handshake. The negotiator fingerprints the local
// stream and submits a pre-check. When the remote already holds identical
// content the upload is finished without transferring any bytes. Otherwise
// the negotiator fetches temporary object-storage credentials and returns
// them in a Ticket; moving the bytes is left to the caller (see package
// ossupload).
//
// The negotiator never retries. Wrap calls with package retry when needed.
package upload
