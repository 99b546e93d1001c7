package qlite

import "time"

// CircuitJob describes one circuit evaluation to run on a Pool. Either
// Source holds circuit text to parse, or NQubits and Opcodes describe the
// circuit directly; Source wins when both are set.
type CircuitJob struct {
	ID      string
	NQubits int
	Opcodes []Opcode
	Source  string
	Targets []int
	Shots   int
	Config  *Config
	Group   string
}

// Job wraps a CircuitJob with its scheduling state
type Job struct {
	ID                    string
	Circuit               CircuitJob
	RetryPolicy           *RetryPolicy
	CircuitID             string
	CircuitConfig         *CircuitBreakerConfig
	Dependencies          []string
	TTL                   time.Duration
	Attempt               int
	LastError             error
	DependencyRetryPolicy *RetryPolicy
	StartTime             time.Time
}

// JobOption is a function type for configuring jobs
type JobOption func(*Job)

// CircuitBreakerConfig struct
type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
	HalfOpenMax  int
}

// RunResult is the resolved outcome of one scheduled circuit job. Counts
// is nil when the job did not sample shots.
type RunResult struct {
	JobID         string
	Probabilities []float64
	Counts        Counts
	Err           error
	CreatedAt     time.Time
	TTL           time.Duration
}

// WithDependencies makes a job wait for the listed jobs' results before
// it runs.
func WithDependencies(ids ...string) JobOption {
	return func(j *Job) {
		j.Dependencies = ids
	}
}
