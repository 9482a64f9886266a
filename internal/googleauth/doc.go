// Package googleauth builds authenticated HTTP clients for the two Google
// APIs from an installed-app OAuth credential and a stored token. It is a
// thin boundary shim: the sync core never sees tokens, only http.Clients.
package googleauth
