// Package observer writes point-in-time projections of a running
// harness for external monitoring. The coordinator calls Observe once
// per tick; the write is non-blocking and best-effort, so a slow or
// failed sink never stalls the control loop.
//
// Snapshots are serialized through a pluggable [Codec] (JSON or
// MessagePack) into a [Sink] (file, buffer, or anything else that
// accepts encoded frames).
package observer
