package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

func TestSessionConfig(t *testing.T) {
	cfg := SessionConfig("case-001")
	require.NoError(t, cfg.Validate())

	session, err := blackboard.NewSession(cfg)
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "case-001", session.Name())
}

func TestRun(t *testing.T) {
	session, err := blackboard.NewSession(SessionConfig("scripted-case"))
	require.NoError(t, err)
	defer session.Close()

	result, err := Run(session)
	require.NoError(t, err)

	t.Run("diagnosis resolves by quorum", func(t *testing.T) {
		require.NotNil(t, result.Diagnosis)
		assert.Equal(t, "pneumonia", result.Diagnosis.Stance)
		assert.Equal(t, blackboard.PolicyQuorumWeighted, result.Diagnosis.Policy)
		assert.Equal(t, []string{AgentImagingAnalyzer, AgentLabAnalyzer}, result.Diagnosis.Supporting)
		assert.Equal(t, []string{AgentRiskStratifier}, result.Diagnosis.Dissenting)
		assert.InDelta(t, 0.875, result.Diagnosis.Confidence, 0.0001)
	})

	t.Run("disposition resolves to most severe stance", func(t *testing.T) {
		require.NotNil(t, result.Disposition)
		assert.Equal(t, "admit", result.Disposition.Stance)
		assert.Equal(t, blackboard.PolicyUnanimousSafe, result.Disposition.Policy)
		assert.Equal(t, []string{AgentClinicalDecision, AgentRiskStratifier}, result.Disposition.Supporting)
		assert.Equal(t, []string{AgentImagingAnalyzer}, result.Disposition.Dissenting)
	})

	t.Run("lab question answered in-callback", func(t *testing.T) {
		require.NotNil(t, result.Answered)
		assert.Equal(t, blackboard.QuestionStateAnswered, result.Answered.State)
		assert.Equal(t, AgentLabAnalyzer, result.Answered.Responder)
		assert.Equal(t, AgentClinicalDecision, result.Answered.Asker)
	})

	t.Run("imaging question expires", func(t *testing.T) {
		require.NotNil(t, result.TimedOut)
		assert.Equal(t, blackboard.QuestionStateExpired, result.TimedOut.State)
		assert.Equal(t, AgentImagingAnalyzer, result.TimedOut.Target)
	})

	log := session.Log()

	t.Run("critical alerts recorded", func(t *testing.T) {
		assert.True(t, log.HasAlert("risk.sepsis"))
		assert.True(t, log.HasAlert("labs.critical"))

		// labs.lactate finding, labs.critical alert, risk.sepsis alert
		critical := log.CriticalAlerts()
		require.Len(t, critical, 3)
	})

	t.Run("timeout alert published by the bus", func(t *testing.T) {
		alerts := log.ByTopic(blackboard.TopicQuestionTimeout)
		require.Len(t, alerts, 1)
		assert.Equal(t, blackboard.BusSender, alerts[0].Sender)
		assert.Equal(t, blackboard.PriorityHigh, alerts[0].Priority)
		assert.Equal(t, "imaging.prior-studies", alerts[0].Payload["topic"])
	})

	t.Run("consensus triggers treatment plan", func(t *testing.T) {
		plan := log.LatestByTopic("plan.treatment")
		require.NotNil(t, plan)
		assert.Equal(t, AgentClinicalDecision, plan.Sender)
		assert.Equal(t, "admit", plan.Payload["disposition"])
	})

	t.Run("transcript covers every message type", func(t *testing.T) {
		assert.Len(t, log.ByType(blackboard.MessageTypeFinding), 5)
		assert.Len(t, log.ByType(blackboard.MessageTypeQuestion), 2)
		assert.Len(t, log.ByType(blackboard.MessageTypeResponse), 1)
		assert.Len(t, log.ByType(blackboard.MessageTypeAlert), 3)
		assert.Len(t, log.ByType(blackboard.MessageTypeOpinion), 6)
		assert.Len(t, log.ByType(blackboard.MessageTypeConsensus), 2)
		assert.Equal(t, 19, log.Len())
	})
}

func TestRunRequiresConsensusConfig(t *testing.T) {
	session, err := blackboard.NewSession(blackboard.SessionConfig{
		Name:            "unconfigured",
		QuestionTimeout: time.Second,
		SweepInterval:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	defer session.Close()

	_, err = Run(session)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consensus configuration")
}
