// regulator.go
package qlite

/*
Regulator is the interface for components that pace the flow of work: the
token-bucket RateLimiter pacing remote polling, the CircuitBreaker
guarding the remote endpoint, the Scaler sizing the worker set and the
MemoryGovernor bounding state allocation all implement it. A Pool
consults its regulators before admitting jobs, so any of them can hold
work back while the system recovers.
*/
type Regulator interface {
	// Observe lets the regulator monitor current system metrics, the
	// feedback it bases control decisions on.
	//
	// Parameters:
	//   - metrics: Current system metrics including performance and health indicators
	Observe(metrics *Metrics)

	// Limit determines if the regulated action should be restricted.
	//
	// Returns:
	//   - bool: true if the action should be limited, false if it should proceed
	Limit() bool

	// Renormalize attempts to return the system to a normal operating
	// state after a period of restriction. What "normal" means depends on
	// the implementation.
	Renormalize()
}
