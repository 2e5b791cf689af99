// package bus carries the sync pipeline's message topics and payloads.
//
// The transport is a Watermill gochannel pub/sub: topic based, in process,
// at-least-once. Consumers are written to tolerate duplicate delivery.
package bus
