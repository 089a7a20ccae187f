/*
Package sequencer starts the managed service stack in dependency order.

Order: virtual display, remote-desktop server and window manager, websocket
bridge, debuggable browser (on the allocated port), application server,
reverse proxy. Each stage declares a readiness check (TCP port, display
socket, or settle delay) polled with a bounded deadline instead of a blind
sleep. Optional components that are not installed are skipped; required
ones abort startup. The reverse proxy's listen port is assigned externally,
so its config is rendered from a template before launch.
*/
package sequencer
