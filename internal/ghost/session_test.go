package ghost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aetherime/internal/wire"
)

type fakePredictor struct {
	requests []wire.PredictRequest
	response *wire.PredictResponse
}

func (f *fakePredictor) Predict(req wire.PredictRequest) (*wire.PredictResponse, error) {
	f.requests = append(f.requests, req)
	return f.response, nil
}

func TestSessionOnTextChanged(t *testing.T) {
	predictor := &fakePredictor{response: &wire.PredictResponse{
		GhostText:  "我们去吃饭",
		Confidence: 0.8,
		Source:     "local_fim",
	}}
	session := NewSession(predictor)

	got := session.OnTextChanged("今天", "")
	assert.Equal(t, "我们去吃饭", got)
	assert.Equal(t, "我们去吃饭", session.GhostText())
	require.NotNil(t, session.LastPrediction())
	assert.Equal(t, "local_fim", session.LastPrediction().Source)

	require.Len(t, predictor.requests, 1)
	req := predictor.requests[0]
	assert.Equal(t, "今天", req.Prefix)
	assert.Equal(t, wire.LanguageZh, req.Language)
	assert.Equal(t, wire.ModeFim, req.Mode)
	assert.Equal(t, 8, req.MaxTokens)
	assert.Equal(t, 5000, req.LatencyBudgetMs)
	assert.NotEmpty(t, req.ID)
}

func TestSessionRequestIDsIncrease(t *testing.T) {
	predictor := &fakePredictor{}
	session := NewSession(predictor)

	session.OnTextChanged("a", "")
	session.OnTextChanged("ab", "")
	require.Len(t, predictor.requests, 2)
	assert.NotEqual(t, predictor.requests[0].ID, predictor.requests[1].ID)
}

func TestSessionNoResultClearsGhost(t *testing.T) {
	predictor := &fakePredictor{response: &wire.PredictResponse{GhostText: "stale"}}
	session := NewSession(predictor)
	session.OnTextChanged("today", "")
	require.Equal(t, "stale", session.GhostText())

	predictor.response = nil
	assert.Empty(t, session.OnTextChanged("today we", ""))
	assert.Empty(t, session.GhostText())
	assert.Nil(t, session.LastPrediction())
}

func TestSessionEmptyGhostTextIsNoResult(t *testing.T) {
	predictor := &fakePredictor{response: &wire.PredictResponse{GhostText: "", Confidence: 0.9}}
	session := NewSession(predictor)
	assert.Empty(t, session.OnTextChanged("x", ""))
	assert.Nil(t, session.LastPrediction())
}

func TestSessionAcceptGhost(t *testing.T) {
	predictor := &fakePredictor{response: &wire.PredictResponse{GhostText: "hello there"}}
	session := NewSession(predictor)
	session.OnTextChanged("say ", "")

	assert.Equal(t, "hello there", session.AcceptGhost())
	assert.Empty(t, session.GhostText())
	// Accepting twice returns nothing the second time.
	assert.Empty(t, session.AcceptGhost())
}

func TestSessionClearGhost(t *testing.T) {
	predictor := &fakePredictor{response: &wire.PredictResponse{GhostText: "hi"}}
	session := NewSession(predictor)
	session.OnTextChanged("x", "")

	session.ClearGhost()
	assert.Empty(t, session.GhostText())
	assert.Nil(t, session.LastPrediction())
}

func TestSessionLanguageAndMode(t *testing.T) {
	predictor := &fakePredictor{}
	session := NewSession(predictor)
	session.SetLanguage(wire.LanguageEn)
	session.SetMode(wire.ModeNext)

	session.OnTextChanged("hello ", "world")
	require.Len(t, predictor.requests, 1)
	assert.Equal(t, wire.LanguageEn, predictor.requests[0].Language)
	assert.Equal(t, wire.ModeNext, predictor.requests[0].Mode)
	assert.Equal(t, "world", predictor.requests[0].Suffix)
}
