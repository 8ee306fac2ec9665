package server

// Server runs the record store until a stop signal arrives.
type Server interface {
	RunServer()
	Shutdown()
}
