package scenario

import (
	"fmt"
	"log"
	"strings"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// Agent names used by the scripted case. A config file driving this
// scenario must define these agents and use them as consensus voters.
const (
	AgentLabAnalyzer      = "lab-analyzer"
	AgentImagingAnalyzer  = "imaging-analyzer"
	AgentRiskStratifier   = "risk-stratifier"
	AgentClinicalDecision = "clinical-decision"
)

// Consensus topics the scripted case votes on.
const (
	TopicDiagnosis   = "diagnosis"
	TopicDisposition = "disposition"
)

// labAnalyzer publishes canned laboratory findings and answers questions
// about lab topics.
type labAnalyzer struct {
	port *blackboard.Port
}

func newLabAnalyzer(session *blackboard.Session) (*labAnalyzer, error) {
	a := &labAnalyzer{port: session.Port(AgentLabAnalyzer)}

	_, err := a.port.Subscribe(blackboard.MessageTypeQuestion, "labs.", a.onQuestion)
	if err != nil {
		return nil, fmt.Errorf("failed to wire lab analyzer: %w", err)
	}
	return a, nil
}

// onQuestion answers any lab question directed at this agent from inside
// the delivery callback.
func (a *labAnalyzer) onQuestion(m *blackboard.Message) {
	outcome, err := a.port.Answer(m.ID, map[string]any{
		"summary": "WBC trending up over 24h, consistent with acute infection",
	})
	if err != nil {
		log.Printf("[%s] Failed to answer question %s: %v", AgentLabAnalyzer, m.ID, err)
		return
	}
	if outcome != blackboard.OutcomeAnswered {
		log.Printf("[%s] Answer to %s arrived %s", AgentLabAnalyzer, m.ID, outcome)
	}
}

func (a *labAnalyzer) publishFindings() error {
	_, err := a.port.Publish(blackboard.MessageTypeFinding, "labs.cbc",
		blackboard.PriorityHigh, map[string]any{
			"wbc":  15.2,
			"crp":  180,
			"note": "leukocytosis with elevated inflammatory markers",
		})
	if err != nil {
		return err
	}

	_, err = a.port.Publish(blackboard.MessageTypeFinding, "labs.lactate",
		blackboard.PriorityCritical, map[string]any{
			"lactate": 4.1,
			"note":    "lactate above sepsis threshold",
		})
	if err != nil {
		return err
	}

	_, err = a.port.Publish(blackboard.MessageTypeAlert, "labs.critical",
		blackboard.PriorityCritical, map[string]any{
			"value":  "lactate 4.1 mmol/L",
			"reason": "critical lab value",
		})
	return err
}

// imagingAnalyzer publishes a canned chest x-ray finding. It registers no
// question handler: a question targeted at it is left to expire, which is
// how the scripted case exercises the timeout path.
type imagingAnalyzer struct {
	port *blackboard.Port
}

func newImagingAnalyzer(session *blackboard.Session) *imagingAnalyzer {
	return &imagingAnalyzer{port: session.Port(AgentImagingAnalyzer)}
}

func (a *imagingAnalyzer) publishFindings() error {
	_, err := a.port.Publish(blackboard.MessageTypeFinding, "imaging.chest-xray",
		blackboard.PriorityHigh, map[string]any{
			"impression": "right lower lobe consolidation",
			"severity":   "moderate",
		})
	return err
}

// riskStratifier listens for lab and imaging findings and raises a sepsis
// alert once it has evidence from both sources.
type riskStratifier struct {
	port       *blackboard.Port
	hasLabs    bool
	hasImaging bool
	alerted    bool
}

func newRiskStratifier(session *blackboard.Session) (*riskStratifier, error) {
	a := &riskStratifier{port: session.Port(AgentRiskStratifier)}

	if _, err := a.port.Subscribe(blackboard.MessageTypeFinding, "labs.", a.onFinding); err != nil {
		return nil, fmt.Errorf("failed to wire risk stratifier: %w", err)
	}
	if _, err := a.port.Subscribe(blackboard.MessageTypeFinding, "imaging.", a.onFinding); err != nil {
		return nil, fmt.Errorf("failed to wire risk stratifier: %w", err)
	}
	return a, nil
}

func (a *riskStratifier) onFinding(m *blackboard.Message) {
	if strings.HasPrefix(m.Topic, "labs.") {
		a.hasLabs = true
	} else {
		a.hasImaging = true
	}

	if !a.hasLabs || !a.hasImaging || a.alerted {
		return
	}
	a.alerted = true

	_, err := a.port.Publish(blackboard.MessageTypeFinding, "risk.sepsis",
		blackboard.PriorityHigh, map[string]any{
			"score":   0.91,
			"drivers": "lactate, leukocytosis, consolidation",
		})
	if err != nil {
		log.Printf("[%s] Failed to publish risk finding: %v", AgentRiskStratifier, err)
		return
	}

	_, err = a.port.Publish(blackboard.MessageTypeAlert, "risk.sepsis",
		blackboard.PriorityCritical, map[string]any{
			"score":  0.91,
			"action": "initiate sepsis bundle",
		})
	if err != nil {
		log.Printf("[%s] Failed to publish risk alert: %v", AgentRiskStratifier, err)
	}
}

// clinicalDecision asks the evidence-gathering questions, votes, and turns
// the resolved disposition into a treatment plan finding.
type clinicalDecision struct {
	port *blackboard.Port
}

func newClinicalDecision(session *blackboard.Session) (*clinicalDecision, error) {
	a := &clinicalDecision{port: session.Port(AgentClinicalDecision)}

	_, err := a.port.Subscribe(blackboard.MessageTypeConsensus, TopicDisposition, a.onConsensus)
	if err != nil {
		return nil, fmt.Errorf("failed to wire clinical decision agent: %w", err)
	}
	return a, nil
}

// onConsensus publishes the treatment plan from inside the consensus
// delivery callback.
func (a *clinicalDecision) onConsensus(m *blackboard.Message) {
	_, err := a.port.Publish(blackboard.MessageTypeFinding, "plan.treatment",
		blackboard.PriorityHigh, map[string]any{
			"disposition": m.Payload["stance"],
			"plan":        "broad-spectrum antibiotics, fluids, serial lactate",
		})
	if err != nil {
		log.Printf("[%s] Failed to publish treatment plan: %v", AgentClinicalDecision, err)
	}
}
