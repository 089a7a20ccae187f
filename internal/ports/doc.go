// Package ports allocates the remote-debugging port for the browser process.
//
// Allocation scans a bounded range starting at the preferred port and fails
// with ErrNoFreePort when the range is exhausted. The winning port is
// exported as a JSON lease file so the health probe and the reverse-proxy
// config renderer can pick it up.
package ports
