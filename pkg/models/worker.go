package models

import "time"

// Capability tags advertise the domains a worker is competent in. The
// coordinator's scorer maps request text onto these tags.
const (
	CapArchitecture = "architecture"
	CapFrontend     = "frontend"
	CapBackend      = "backend"
	CapSecurity     = "security"
	CapPerformance  = "performance"
	CapCode         = "code"
)

// WorkerResult is one worker's answer to a coordinated request.
type WorkerResult struct {
	// Content is the worker's free-text response.
	Content string `json:"content"`
	// Confidence is the worker's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Suggestions are concrete follow-up actions the worker proposes.
	Suggestions []string `json:"suggestions,omitempty"`
	// FollowUps are clarifying questions for the caller.
	FollowUps []string `json:"follow_ups,omitempty"`
	// RelatedTopics are tags for adjacent subject areas.
	RelatedTopics []string `json:"related_topics,omitempty"`
	// Elapsed is how long the worker took to produce the result.
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// WorkerStats accumulates rolling performance figures for one worker.
type WorkerStats struct {
	// Invocations is the number of times the worker has been called.
	Invocations int `json:"invocations"`
	// AvgLatency is the rolling average call duration.
	AvgLatency time.Duration `json:"avg_latency"`
	// AvgConfidence is the rolling average of reported confidence.
	AvgConfidence float64 `json:"avg_confidence"`
	// Failures is the number of calls that returned an error.
	Failures int `json:"failures"`
}

// Record folds one invocation outcome into the rolling averages. Latency is
// averaged over all calls; confidence only over the ones that succeeded.
func (s *WorkerStats) Record(latency time.Duration, confidence float64, failed bool) {
	n := s.Invocations
	s.AvgLatency = time.Duration((int64(s.AvgLatency)*int64(n) + int64(latency)) / int64(n+1))
	if failed {
		s.Failures++
	} else {
		ok := n - s.Failures
		s.AvgConfidence = (s.AvgConfidence*float64(ok) + confidence) / float64(ok+1)
	}
	s.Invocations = n + 1
}

// Topology is the inter-worker execution pattern for one coordinated request.
type Topology string

const (
	// TopologySequential runs workers one at a time, each seeing the
	// prior worker's suggestions.
	TopologySequential Topology = "sequential"
	// TopologyParallel runs all workers concurrently with the same context.
	TopologyParallel Topology = "parallel"
	// TopologyHierarchical runs the lead worker first, then the rest in
	// parallel with the lead's guidance folded into their context.
	TopologyHierarchical Topology = "hierarchical"
	// TopologyCollaborative runs two parallel rounds; round two gives each
	// worker a summary of everyone else's round-one output to refine against.
	TopologyCollaborative Topology = "collaborative"
)

// Valid returns true if the topology is a known value.
func (t Topology) Valid() bool {
	switch t {
	case TopologySequential, TopologyParallel, TopologyHierarchical, TopologyCollaborative:
		return true
	default:
		return false
	}
}

// CoordinatedTaskStatus represents the state of one in-flight coordinated request.
type CoordinatedTaskStatus string

const (
	// CoordinatedPending indicates the task is created but not yet executing.
	CoordinatedPending CoordinatedTaskStatus = "pending"
	// CoordinatedInProgress indicates workers are executing.
	CoordinatedInProgress CoordinatedTaskStatus = "in_progress"
	// CoordinatedCompleted indicates synthesis finished.
	CoordinatedCompleted CoordinatedTaskStatus = "completed"
	// CoordinatedFailed indicates the request errored before synthesis.
	CoordinatedFailed CoordinatedTaskStatus = "failed"
)

// CoordinatedTask is the coordinator's bookkeeping record for one request.
// It exists only for the duration of one ProcessRequest call.
type CoordinatedTask struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// Request is the free-text request being processed.
	Request string `json:"request"`
	// Context is the optional ambient context supplied by the caller.
	Context map[string]any `json:"context,omitempty"`
	// Status is the current state of the request.
	Status CoordinatedTaskStatus `json:"status"`
	// Workers lists the names of the workers chosen for this request.
	Workers []string `json:"workers"`
	// Topology is the coordination pattern chosen for this request.
	Topology Topology `json:"topology,omitempty"`
	// Results holds each worker's output, keyed by worker name.
	Results map[string]*WorkerResult `json:"results,omitempty"`
	// CreatedAt is when the request arrived.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the record last changed state.
	UpdatedAt time.Time `json:"updated_at"`
}
