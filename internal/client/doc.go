// Package client provides the data client used to query and mutate naming-service
// state for one network.
//
// A Client is bound to at most one network for its whole life; rebinding always means
// creating a new Client through a Factory. Besides remote operations served by a
// Backend, every client carries local state (the last recorded provisioning error)
// that the rest of the application reads back through the same Query path.
package client
