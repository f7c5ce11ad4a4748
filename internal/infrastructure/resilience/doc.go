/*
Package resilience provides a circuit breaker for outbound delivery.

# Overview

This package implements the circuit breaker pattern so that delivery
paths such as the event webhook fail fast while their endpoint is
unhealthy instead of piling retries behind a dead connection.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Consecutive-failure threshold and cooldown configuration
- Single-probe recovery testing
- State change callbacks for logging
- Thread-safe operations

# Usage

	breaker := resilience.New("webhook", resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	if breaker.Allow() {
		err := deliver(event)
		breaker.Record(err == nil)
	}

# States

- Closed: normal operation, calls pass through
- Open: endpoint unavailable, calls rejected immediately
- Half-Open: cooldown elapsed, one probe admitted to test recovery

# Pattern

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                             |
	                                         [failure]
	                                             |
	                                             v
	                                           Open
*/
package resilience
