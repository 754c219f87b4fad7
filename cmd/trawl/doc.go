// Package main hosts the trawl CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the logger, and wires
// the catalog client, checkpoint store, track cache, and workflow runner for
// each invocation. `trawl run` drives a discovery session; the session, cache,
// serve, doctor, and config commands inspect and maintain the state it leaves
// behind.
package main
