/*
Package resilience provides the circuit breaker that guards storage disk I/O.

# Overview

When the storage volume starts failing (full disk, read-only remount, broken
mount), every record write would otherwise block on the same failing syscalls.
The breaker opens after a run of consecutive failures and rejects calls with
ErrCircuitOpen until its timeout elapses, then admits a probe.

Errors classified as successful by Settings.IsSuccessful (the record store
passes "not found") are returned untouched without counting as failures.

# Usage

	breaker := resilience.New("disk", resilience.Settings{
		Timeout:      10 * time.Second,
		ReadyToTrip:  resilience.ConsecutiveFailures(5),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, types.ErrNotFound) },
		OnStateChange: func(name string, from, to resilience.State) {
			metrics.RecordBreakerTransition(name, to.String())
		},
	})

	data, err := resilience.Call(breaker, func() ([]byte, error) {
		return os.ReadFile(path)
	})

# States

- Closed: normal operation, calls pass through
- Open: calls fail immediately with ErrCircuitOpen
- Half-Open: a limited number of probes decide whether to close again
*/
package resilience
