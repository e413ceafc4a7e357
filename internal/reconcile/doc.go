// Package reconcile keeps the active data client bound to the live network.
//
// A pass detects the live network, compares it with the requested one, and provisions
// a new client when they differ. Any failure is converted into a fallback client that
// carries an error record; failures never escape a pass. Passes are numbered as they
// start and only the most recently started pass may install its client.
package reconcile
