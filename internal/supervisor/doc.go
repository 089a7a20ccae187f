/*
Package supervisor keeps the container's child processes alive.

Each Program runs in its own process group. A process that exits before its
grace period counts as a fast failure against a bounded restart budget;
surviving the grace period resets the budget. The foreground program (the
reverse proxy) is never restarted: its exit ends the unit, surfaced via
Done(). Stop forwards SIGTERM to every process group and escalates to
SIGKILL so no orphans outlive the unit.

State transitions are published on a buffered event feed consumed by the
introspection API's websocket stream and the metrics collector.
*/
package supervisor
