/*
Package health aggregates service liveness into a single verdict.

Services are classified into tiers. The critical tier (the application's
internal API) decides the aggregate verdict: if it exhausts its retries the
check fails immediately without probing further. The secondary tier (the
user-facing UI) and the optional tier (remote-desktop stack, browser debug
port) are probed for the report only. An external probe with a single
timeout window cannot wait for every subsystem, so the aggregator encodes
which ones are load-bearing.

Each attempt is a TCP port-open probe followed by an optional HTTP GET with
a short timeout. Retries are sequential with a fixed delay, bounding one
service's wall clock at MaxRetries * (Timeout + RetryDelay).
*/
package health
