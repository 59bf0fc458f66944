package blackboard

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"
)

// ResolutionPolicy selects how an opinion set decides it has converged.
type ResolutionPolicy string

const (
	// PolicyUnanimousSafe resolves only when every required voter has
	// submitted. Disagreement resolves to the most severe stance among
	// the submissions, never an average - a safety-first default.
	PolicyUnanimousSafe ResolutionPolicy = "unanimous-safe"

	// PolicyQuorumWeighted resolves once a configured fraction of the
	// required voters agree on one stance. Ties between qualifying
	// stances break on higher aggregate confidence, then on the more
	// severe stance.
	PolicyQuorumWeighted ResolutionPolicy = "quorum-weighted"
)

// Validate checks if the ResolutionPolicy is a valid enum value.
func (rp ResolutionPolicy) Validate() error {
	switch rp {
	case PolicyUnanimousSafe, PolicyQuorumWeighted:
		return nil
	default:
		return fmt.Errorf("unknown resolution policy: %q", rp)
	}
}

// OpinionSetState defines the lifecycle state of an opinion set.
// RESOLVED is final: late opinions are recorded but never reopen it.
type OpinionSetState string

const (
	OpinionSetCollecting OpinionSetState = "collecting"
	OpinionSetResolved   OpinionSetState = "resolved"
)

// Validate checks if the OpinionSetState is a valid enum value.
func (os OpinionSetState) Validate() error {
	switch os {
	case OpinionSetCollecting, OpinionSetResolved:
		return nil
	default:
		return fmt.Errorf("unknown opinion set state: %q", os)
	}
}

// ConsensusTopicConfig configures consensus tracking for one topic.
// The severity order is deployment configuration, never hard-coded: which
// stance "outranks" another is a clinical-governance decision.
type ConsensusTopicConfig struct {
	// Topic is the consensus topic, e.g. "diagnosis" or "disposition".
	Topic string

	// Policy selects the resolution policy.
	Policy ResolutionPolicy

	// RequiredVoters is the set of agents whose opinions count toward
	// resolution. Must not be empty.
	RequiredVoters []string

	// Quorum is the fraction of required voters that must agree, in
	// (0, 1]. Only meaningful for PolicyQuorumWeighted.
	Quorum float64

	// SeverityOrder lists stances from least to most severe. Submitted
	// stances must appear here; the order drives the safety bias and
	// tie-breaking.
	SeverityOrder []string
}

// Validate performs strict validation on a consensus topic configuration.
func (tc *ConsensusTopicConfig) Validate() error {
	if tc.Topic == "" {
		return fmt.Errorf("consensus topic cannot be empty")
	}

	if err := tc.Policy.Validate(); err != nil {
		return fmt.Errorf("consensus topic %q: %w", tc.Topic, err)
	}

	if len(tc.RequiredVoters) == 0 {
		return fmt.Errorf("consensus topic %q: required_voters cannot be empty", tc.Topic)
	}

	if len(tc.SeverityOrder) == 0 {
		return fmt.Errorf("consensus topic %q: severity_order cannot be empty", tc.Topic)
	}

	stancesSeen := make(map[string]bool)
	for _, stance := range tc.SeverityOrder {
		if stance == "" {
			return fmt.Errorf("consensus topic %q: empty stance in severity_order", tc.Topic)
		}
		if stancesSeen[stance] {
			return fmt.Errorf("consensus topic %q: duplicate stance %q in severity_order", tc.Topic, stance)
		}
		stancesSeen[stance] = true
	}

	if tc.Policy == PolicyQuorumWeighted {
		if tc.Quorum <= 0 || tc.Quorum > 1 {
			return fmt.Errorf("consensus topic %q: quorum must be in (0, 1], got %v", tc.Topic, tc.Quorum)
		}
	}

	return nil
}

// Opinion is one agent's stance on a consensus topic.
type Opinion struct {
	Agent       string    `json:"agent"`
	Stance      string    `json:"stance"`
	Confidence  float64   `json:"confidence"`
	Rationale   string    `json:"rationale,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ConsensusResult is the resolved outcome of an opinion set.
type ConsensusResult struct {
	Topic      string            `json:"topic"`
	Stance     string            `json:"stance"`
	Policy     ResolutionPolicy  `json:"policy"`
	Confidence float64           `json:"confidence"` // mean confidence of the supporting agents
	Supporting []string          `json:"supporting"`
	Dissenting []string          `json:"dissenting,omitempty"`
	Rationales map[string]string `json:"rationales,omitempty"`
}

// OpinionSet aggregates per-topic opinions and tracks resolution.
// One exists per configured consensus topic, owned by the session.
type OpinionSet struct {
	Topic          string
	Policy         ResolutionPolicy
	RequiredVoters []string
	Quorum         float64
	SeverityOrder  []string
	State          OpinionSetState
	Opinions       map[string]Opinion // agent -> latest pre-resolution opinion
	Late           []Opinion          // recorded after resolution, never applied
	Result         *ConsensusResult
}

func newOpinionSet(tc ConsensusTopicConfig) *OpinionSet {
	return &OpinionSet{
		Topic:          tc.Topic,
		Policy:         tc.Policy,
		RequiredVoters: append([]string(nil), tc.RequiredVoters...),
		Quorum:         tc.Quorum,
		SeverityOrder:  append([]string(nil), tc.SeverityOrder...),
		State:          OpinionSetCollecting,
		Opinions:       make(map[string]Opinion),
	}
}

// severityRank returns the index of a stance in the severity order.
// Higher is more severe. Unknown stances rank below everything.
func (os *OpinionSet) severityRank(stance string) int {
	for i, s := range os.SeverityOrder {
		if s == stance {
			return i
		}
	}
	return -1
}

// SubmitOpinion records an agent's stance on a consensus topic, publishes
// the OPINION message, and checks resolution. When the topic's policy
// condition is met the bus publishes a single CONSENSUS message; further
// opinions for that topic are logged and recorded as late but never change
// the resolved outcome or emit a second CONSENSUS - this avoids
// oscillation from late arrivals.
//
// Opinions on topics not configured for consensus are published and logged
// but not tracked for resolution.
func (s *Session) SubmitOpinion(agent, topic, stance string, confidence float64, rationale string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionStateClosed {
		return nil, ErrSessionClosed
	}

	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, validationErrorf("opinion", "confidence must be in [0, 1], got %v", confidence)
	}

	set := s.opinions[topic]
	if set != nil && set.severityRank(stance) < 0 {
		return nil, validationErrorf("opinion", "stance %q not in severity order for topic %q", stance, topic)
	}

	msg, err := s.admitLocked(draft{
		Type:   MessageTypeOpinion,
		Sender: agent,
		Topic:  topic,
		Payload: map[string]any{
			"stance":     stance,
			"confidence": confidence,
			"rationale":  rationale,
		},
	})
	if err != nil {
		return nil, err
	}

	if set == nil {
		log.Printf("[Blackboard] Opinion on unconfigured topic %q from %s recorded but not tracked", topic, agent)
		s.drainLocked()
		return msg, nil
	}

	op := Opinion{
		Agent:       agent,
		Stance:      stance,
		Confidence:  confidence,
		Rationale:   rationale,
		SubmittedAt: msg.Timestamp,
	}

	if set.State == OpinionSetResolved {
		set.Late = append(set.Late, op)
		s.drainLocked()
		return msg, nil
	}

	// Resubmission before resolution replaces the agent's earlier stance.
	set.Opinions[agent] = op

	if result := set.resolve(); result != nil {
		set.State = OpinionSetResolved
		set.Result = result

		if _, err := s.admitLocked(draft{
			Type:     MessageTypeConsensus,
			Sender:   BusSender,
			Topic:    topic,
			Priority: PriorityHigh,
			Payload: map[string]any{
				"stance":     result.Stance,
				"policy":     string(result.Policy),
				"confidence": result.Confidence,
				"supporting": result.Supporting,
				"dissenting": result.Dissenting,
				"rationales": result.Rationales,
			},
		}); err != nil {
			return nil, err
		}
	}

	s.drainLocked()
	return msg, nil
}

// OpinionSetSnapshot returns a copy of the opinion set for a topic, or
// false if the topic is not configured for consensus.
func (s *Session) OpinionSetSnapshot(topic string) (*OpinionSet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.opinions[topic]
	if !ok {
		return nil, false
	}

	out := &OpinionSet{
		Topic:          set.Topic,
		Policy:         set.Policy,
		RequiredVoters: append([]string(nil), set.RequiredVoters...),
		Quorum:         set.Quorum,
		SeverityOrder:  append([]string(nil), set.SeverityOrder...),
		State:          set.State,
		Opinions:       make(map[string]Opinion, len(set.Opinions)),
		Late:           append([]Opinion(nil), set.Late...),
	}
	for k, v := range set.Opinions {
		out.Opinions[k] = v
	}
	if set.Result != nil {
		result := *set.Result
		out.Result = &result
	}
	return out, true
}

// resolve checks the policy condition and returns the result if met.
func (os *OpinionSet) resolve() *ConsensusResult {
	switch os.Policy {
	case PolicyUnanimousSafe:
		return os.resolveUnanimousSafe()
	case PolicyQuorumWeighted:
		return os.resolveQuorumWeighted()
	default:
		return nil
	}
}

// resolveUnanimousSafe requires every required voter to have submitted,
// then picks the most severe stance among all submissions.
func (os *OpinionSet) resolveUnanimousSafe() *ConsensusResult {
	for _, voter := range os.RequiredVoters {
		if _, ok := os.Opinions[voter]; !ok {
			return nil
		}
	}

	stance := ""
	rank := -1
	for _, op := range os.Opinions {
		if r := os.severityRank(op.Stance); r > rank {
			rank = r
			stance = op.Stance
		}
	}

	return os.buildResult(stance)
}

// resolveQuorumWeighted resolves once enough required voters share one
// stance. Ties between qualifying stances break on aggregate confidence,
// then on severity.
func (os *OpinionSet) resolveQuorumWeighted() *ConsensusResult {
	threshold := int(math.Ceil(os.Quorum * float64(len(os.RequiredVoters))))
	if threshold < 1 {
		threshold = 1
	}

	required := make(map[string]bool, len(os.RequiredVoters))
	for _, voter := range os.RequiredVoters {
		required[voter] = true
	}

	counts := make(map[string]int)
	weights := make(map[string]float64)
	for agent, op := range os.Opinions {
		if !required[agent] {
			continue
		}
		counts[op.Stance]++
		weights[op.Stance] += op.Confidence
	}

	var candidates []string
	for stance, n := range counts {
		if n >= threshold {
			candidates = append(candidates, stance)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		wi, wj := weights[candidates[i]], weights[candidates[j]]
		if wi != wj {
			return wi > wj
		}
		return os.severityRank(candidates[i]) > os.severityRank(candidates[j])
	})

	return os.buildResult(candidates[0])
}

// buildResult assembles the ConsensusResult for the winning stance from
// the current opinions.
func (os *OpinionSet) buildResult(stance string) *ConsensusResult {
	result := &ConsensusResult{
		Topic:      os.Topic,
		Stance:     stance,
		Policy:     os.Policy,
		Rationales: make(map[string]string),
	}

	var confidenceSum float64
	for _, op := range os.Opinions {
		if op.Rationale != "" {
			result.Rationales[op.Agent] = op.Rationale
		}
		if op.Stance == stance {
			result.Supporting = append(result.Supporting, op.Agent)
			confidenceSum += op.Confidence
		} else {
			result.Dissenting = append(result.Dissenting, op.Agent)
		}
	}

	sort.Strings(result.Supporting)
	sort.Strings(result.Dissenting)

	if len(result.Supporting) > 0 {
		result.Confidence = confidenceSum / float64(len(result.Supporting))
	}

	return result
}
