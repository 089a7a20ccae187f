// Command orchestrator is the container entrypoint. It allocates the
// browser debug port, renders the reverse-proxy config, launches the
// service stack in dependency order under supervision, and serves the
// introspection API until the foreground proxy exits or a termination
// signal arrives.
package main
