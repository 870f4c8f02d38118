// Package events relays committed booking changes to their sinks and feeds
// payment confirmations back into the booking service.
//
// Dispatcher implements application.EventPublisher with a bounded queue and a
// fixed pool of workers, so the request path never waits on a broker. Sinks
// include LogSink and AMQPPublisher. PaymentConsumer reads payment.paid
// messages from RabbitMQ and confirms the matching booking.
package events
