// Package streamclient defines the boundary between the producer and the
// remote streaming service.
//
// A Client performs single-record and multi-record puts against an
// append-only, partitioned stream. Multi-record responses are positionally
// aligned with the request: entry i of the response describes entry i of the
// request, and an entry with a non-empty ErrorCode was rejected.
//
// Implementations live in sub-packages (kinesis, kafka). Whether a Client is
// safe for concurrent use is documented per implementation; callers must not
// assume it.
package streamclient
