// Package ghost manages inline "ghost text" completions: the per-context
// prediction session that fetches them, and the composition controller that
// renders them inside the host document.
package ghost

import (
	"strconv"
	"sync/atomic"

	"aetherime/internal/wire"
)

// Prediction request defaults for interactive typing.
const (
	predictMaxTokens       = 8
	predictLatencyBudgetMs = 5000
)

// Predictor performs one prediction exchange. A nil response with a nil
// error means "no result"; transport.Client satisfies this.
type Predictor interface {
	Predict(req wire.PredictRequest) (*wire.PredictResponse, error)
}

// Session is the per-input-context prediction façade. It owns the current
// ghost text and the last prediction that produced it.
type Session struct {
	client Predictor

	language wire.Language
	mode     wire.Mode

	ghostText      string
	lastPrediction *wire.PredictResponse

	nextID atomic.Int64
}

// NewSession creates a session talking to the given predictor, defaulting
// to Chinese fill-in-the-middle prediction.
func NewSession(client Predictor) *Session {
	return &Session{
		client:   client,
		language: wire.LanguageZh,
		mode:     wire.ModeFim,
	}
}

// SetLanguage selects the prediction language.
func (s *Session) SetLanguage(lang wire.Language) { s.language = lang }

// SetMode selects the prediction mode.
func (s *Session) SetMode(mode wire.Mode) { s.mode = mode }

// OnTextChanged submits a prediction request for the current context window
// and returns the resulting ghost text, empty if the daemon had nothing.
func (s *Session) OnTextChanged(prefix, suffix string) string {
	req := wire.PredictRequest{
		ID:              strconv.FormatInt(s.nextID.Add(1), 10),
		Prefix:          prefix,
		Suffix:          suffix,
		Language:        s.language,
		Mode:            s.mode,
		MaxTokens:       predictMaxTokens,
		LatencyBudgetMs: predictLatencyBudgetMs,
	}

	rsp, err := s.client.Predict(req)
	if err != nil || rsp == nil || rsp.GhostText == "" {
		s.lastPrediction = nil
		s.ghostText = ""
		return ""
	}

	s.lastPrediction = rsp
	s.ghostText = rsp.GhostText
	return s.ghostText
}

// GhostText returns the current ghost text, empty if none.
func (s *Session) GhostText() string { return s.ghostText }

// LastPrediction returns the prediction behind the current ghost text, nil
// if none.
func (s *Session) LastPrediction() *wire.PredictResponse { return s.lastPrediction }

// AcceptGhost returns the current ghost text and clears it.
func (s *Session) AcceptGhost() string {
	accepted := s.ghostText
	s.ghostText = ""
	if s.lastPrediction != nil {
		s.lastPrediction.GhostText = ""
	}
	return accepted
}

// ClearGhost drops the ghost text and the cached prediction.
func (s *Session) ClearGhost() {
	s.ghostText = ""
	s.lastPrediction = nil
}
