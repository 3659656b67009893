// Package audit dispatches security events asynchronously to pluggable sinks.
//
// Sinks: [NoOpSink], [ChannelSink], [JSONWriterSink], [SlogSink] and
// [MultiSink]. The [Dispatcher] keeps two queues. Critical events, chosen by
// Config.Critical, are delivered first and are never dropped; routine events
// are dropped or block when full. Which events are emitted is decided by the
// engine.
package audit
