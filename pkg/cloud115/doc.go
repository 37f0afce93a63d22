// Package cloud115 is the entry point of the client. Login binds a set of
// browser cookies to a protocol.Session and returns an Agent whose Offline
// and Storage services expose task, file and directory operations.
//
// Every operation is one remote call, except listings, which return lazy
// iterators fetching one page per advance. Uploads and downloads produce
// tickets; moving the bytes is left to the caller.
package cloud115
