// Package connection keeps the agent's single relay connection alive.
//
// A Manager owns the connection state machine, the offline queue and the
// reconnect policy:
//
//	Disconnected --Initialize--> Connecting
//	Connecting --socket up (and Pong, if enabled)--> Connected
//	Connecting --failure--> Disconnected --> Reconnecting
//	Connected --EOF / write failure / keep-alive timeout--> Disconnected --> Reconnecting
//	Reconnecting --backoff delay elapsed--> Connecting
//	any --Destroy--> Disconnected
//
// Send never blocks on the network state. While disconnected, messages are
// queued (bounded, drop-oldest) and flushed in order on the next connect
// before new messages bypass the queue. A queued message is removed only
// after the socket accepted it, so a failed flush resumes where it stopped.
//
// # Reconnection Strategy
//
// Reconnect delays grow exponentially:
//
//  1. Initial delay: 2 seconds
//  2. Exponential increase: 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful, or until MaxAttempts is reached
//  5. Reset on successful connection
//
// When MaxAttempts is exhausted the manager stays Disconnected and keeps
// queueing; Initialize starts a new round of attempts.
//
// Jitter is off by default. When set, a random extra wait of up to
// Jitter*delay is added to each delay.
package connection
