// Package scenario drives a scripted multi-agent analysis of a canned
// pneumonia/sepsis case across a blackboard session. The agents carry no
// medical inference - their findings, questions, opinions and alerts are
// fixed, chosen to exercise every kind of bus traffic end to end:
// prioritized findings, a question answered in-callback, a question left
// to time out, critical alerts, and consensus on two topics under both
// resolution policies.
package scenario

import (
	"fmt"
	"time"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// unansweredTimeout bounds the deliberately-ignored imaging question.
// Short enough that a scripted run finishes quickly, long enough to
// outlast a sweep interval.
const unansweredTimeout = 150 * time.Millisecond

// expiryWait caps how long Run polls for the timeout alert before
// giving up.
const expiryWait = 5 * time.Second

// SessionConfig returns a session configuration matching the scripted
// case: both consensus topics configured with this package's agents as
// the required voters.
func SessionConfig(name string) blackboard.SessionConfig {
	return blackboard.SessionConfig{
		Name:            name,
		QuestionTimeout: 2 * time.Second,
		SweepInterval:   20 * time.Millisecond,
		Consensus: []blackboard.ConsensusTopicConfig{
			{
				Topic:          TopicDiagnosis,
				Policy:         blackboard.PolicyQuorumWeighted,
				RequiredVoters: []string{AgentLabAnalyzer, AgentImagingAnalyzer, AgentRiskStratifier},
				Quorum:         0.66,
				SeverityOrder:  []string{"bronchitis", "pneumonia", "sepsis"},
			},
			{
				Topic:          TopicDisposition,
				Policy:         blackboard.PolicyUnanimousSafe,
				RequiredVoters: []string{AgentImagingAnalyzer, AgentRiskStratifier, AgentClinicalDecision},
				SeverityOrder:  []string{"discharge", "observe", "admit", "icu"},
			},
		},
	}
}

// Result summarizes what the scripted run produced.
type Result struct {
	Diagnosis   *blackboard.ConsensusResult
	Disposition *blackboard.ConsensusResult
	Answered    *blackboard.PendingQuestion // lab question, answered in-callback
	TimedOut    *blackboard.PendingQuestion // imaging question, left to expire
}

// Run executes the scripted case on the session. The session must be
// configured with the diagnosis and disposition consensus topics (see
// SessionConfig); voting on an unconfigured topic leaves the opinion set
// untracked and Run reports it as an error.
func Run(session *blackboard.Session) (*Result, error) {
	lab, err := newLabAnalyzer(session)
	if err != nil {
		return nil, err
	}
	imaging := newImagingAnalyzer(session)
	risk, err := newRiskStratifier(session)
	if err != nil {
		return nil, err
	}
	clinical, err := newClinicalDecision(session)
	if err != nil {
		return nil, err
	}

	// Phase 1: findings. The imaging finding gives the risk stratifier
	// its second evidence source, so its sepsis alert fires inside this
	// publish cascade.
	if err := lab.publishFindings(); err != nil {
		return nil, fmt.Errorf("lab findings failed: %w", err)
	}
	if err := imaging.publishFindings(); err != nil {
		return nil, fmt.Errorf("imaging findings failed: %w", err)
	}

	// Phase 2: questions. The lab analyzer answers from inside its
	// delivery callback, so the first question is resolved by the time
	// Ask returns. Nothing handles imaging questions; the second one is
	// left for the sweep to expire.
	askedLab, err := clinical.port.Ask(AgentLabAnalyzer, "labs.cbc.trend",
		map[string]any{"question": "is the leukocytosis new?"}, 0)
	if err != nil {
		return nil, fmt.Errorf("lab question failed: %w", err)
	}

	askedImaging, err := clinical.port.Ask(AgentImagingAnalyzer, "imaging.prior-studies",
		map[string]any{"question": "any prior chest films on record?"}, unansweredTimeout)
	if err != nil {
		return nil, fmt.Errorf("imaging question failed: %w", err)
	}

	timedOut, err := waitForExpiry(session, askedImaging.QuestionID)
	if err != nil {
		return nil, err
	}

	// Phase 3: opinions. Diagnosis resolves by quorum on the second
	// pneumonia vote; disposition needs all three voters and resolves to
	// the most severe stance, which triggers the clinical agent's
	// treatment plan.
	votes := []struct {
		port       *blackboard.Port
		topic      string
		stance     string
		confidence float64
		rationale  string
	}{
		{lab.port, TopicDiagnosis, "pneumonia", 0.85, "labs consistent with bacterial infection"},
		{risk.port, TopicDiagnosis, "sepsis", 0.7, "lactate and risk score suggest systemic response"},
		{imaging.port, TopicDiagnosis, "pneumonia", 0.9, "lobar consolidation on chest x-ray"},
		{imaging.port, TopicDisposition, "observe", 0.7, "consolidation moderate, no effusion"},
		{risk.port, TopicDisposition, "admit", 0.85, "sepsis risk warrants inpatient monitoring"},
		{clinical.port, TopicDisposition, "admit", 0.9, "meets admission criteria"},
	}
	for _, v := range votes {
		if _, err := v.port.SubmitOpinion(v.topic, v.stance, v.confidence, v.rationale); err != nil {
			return nil, fmt.Errorf("opinion on %s failed: %w", v.topic, err)
		}
	}

	result := &Result{TimedOut: timedOut}

	if q, ok := session.Question(askedLab.QuestionID); ok {
		result.Answered = q
	}

	diagnosis, ok := session.OpinionSetSnapshot(TopicDiagnosis)
	if !ok || diagnosis.Result == nil {
		return nil, fmt.Errorf("diagnosis consensus did not resolve; check the session's consensus configuration")
	}
	result.Diagnosis = diagnosis.Result

	disposition, ok := session.OpinionSetSnapshot(TopicDisposition)
	if !ok || disposition.Result == nil {
		return nil, fmt.Errorf("disposition consensus did not resolve; check the session's consensus configuration")
	}
	result.Disposition = disposition.Result

	return result, nil
}

// waitForExpiry polls until the sweep marks the question expired.
func waitForExpiry(session *blackboard.Session, questionID string) (*blackboard.PendingQuestion, error) {
	deadline := time.Now().Add(expiryWait)
	for {
		q, ok := session.Question(questionID)
		if !ok {
			return nil, fmt.Errorf("question %s disappeared while waiting for expiry", questionID)
		}
		if q.State == blackboard.QuestionStateExpired {
			return q, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("question %s did not expire within %s", questionID, expiryWait)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
