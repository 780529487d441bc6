// Package audit buffers security events and relays them to a sink.
//
// The engine decides which events to emit; this package only queues and
// delivers them. Sinks that do network I/O (the AMQP publisher) are supplied
// by the caller.
package audit
