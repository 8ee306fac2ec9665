// Package http implements the HTTP transport layer of the development record
// store. It provides the route table, JWT bearer authentication, request
// logging and tracing middleware, and the handlers behind the /api/records
// endpoints the sync engine talks to.
package http
