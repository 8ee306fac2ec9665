package server

import "errors"

var errNoServersAreCreated = errors.New("no servers were created")
