// Package wire implements the newline-delimited JSON protocol spoken between
// the front-ends and the prediction daemon.
//
// Two request shapes are in use: the fcitx front-end speaks "predict" frames
// and receives "predict" responses; the TSF front-end speaks "suggest" frames
// and receives "suggestion" responses, plus "cancel" frames for superseded
// requests. Both share the same framing: one JSON object per line, UTF-8,
// terminated by '\n'.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed indicates a frame whose type field is absent or unknown.
var ErrMalformed = errors.New("wire: malformed frame")

// Language selects the prediction language.
type Language string

const (
	LanguageZh Language = "zh"
	LanguageEn Language = "en"
)

// Mode selects the prediction mode.
type Mode string

const (
	// ModeNext continues from the prefix only.
	ModeNext Mode = "next"
	// ModeFim fills between prefix and suffix.
	ModeFim Mode = "fim"
)

// PredictRequest is the "predict" request frame.
type PredictRequest struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	Prefix          string   `json:"prefix"`
	Suffix          string   `json:"suffix"`
	Language        Language `json:"language"`
	Mode            Mode     `json:"mode"`
	MaxTokens       int      `json:"max_tokens"`
	LatencyBudgetMs int      `json:"latency_budget_ms"`
}

// PredictResponse is the "predict" response frame. Absent fields decode to
// their zero values.
type PredictResponse struct {
	ID         string   `json:"id"`
	GhostText  string   `json:"ghost_text"`
	Candidates []string `json:"candidates"`
	Confidence float64  `json:"confidence"`
	Source     string   `json:"source"`
	ElapsedMs  int      `json:"elapsed_ms"`
}

// SuggestRequest is the "suggest" request frame.
type SuggestRequest struct {
	Type         string `json:"type"`
	RequestID    string `json:"request_id"`
	Context      string `json:"context"`
	Cursor       int    `json:"cursor"`
	LanguageHint string `json:"language_hint"`
	MaxLen       int    `json:"max_len"`
}

// SuggestionResponse is the "suggestion" response frame. ReplaceStart and
// ReplaceEnd carry the daemon's replace_range; callers currently treat every
// suggestion as an insertion at the caret and only record the range.
type SuggestionResponse struct {
	RequestID    string  `json:"request_id"`
	Suggestion   string  `json:"suggestion"`
	Confidence   float64 `json:"confidence"`
	ReplaceStart int     `json:"-"`
	ReplaceEnd   int     `json:"-"`
}

// CancelRequest is the "cancel" frame for a superseded request id.
type CancelRequest struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// Response is the decoded form of one daemon line. Exactly one field carries
// the result (Predict, Suggestion, or Pong); an "error" frame decodes with
// none of them set.
type Response struct {
	Predict    *PredictResponse
	Suggestion *SuggestionResponse
	Pong       bool
}

// Empty reports whether the frame carried no usable result.
func (r Response) Empty() bool {
	return r.Predict == nil && r.Suggestion == nil && !r.Pong
}

// EncodePredict serializes a predict request as a single frame line.
func EncodePredict(req PredictRequest) ([]byte, error) {
	req.Type = "predict"
	if req.Language == "" {
		req.Language = LanguageZh
	}
	if req.Mode == "" {
		req.Mode = ModeFim
	}
	return appendNewline(json.Marshal(req))
}

// EncodeSuggest serializes a suggest request as a single frame line.
func EncodeSuggest(req SuggestRequest) ([]byte, error) {
	req.Type = "suggest"
	if req.LanguageHint == "" {
		req.LanguageHint = "auto"
	}
	return appendNewline(json.Marshal(req))
}

// EncodeCancel serializes a cancel frame for the given request id.
func EncodeCancel(requestID string) ([]byte, error) {
	return appendNewline(json.Marshal(CancelRequest{Type: "cancel", RequestID: requestID}))
}

// EncodePing serializes a ping frame.
func EncodePing() []byte {
	return []byte(`{"id":"ping","type":"ping"}` + "\n")
}

func appendNewline(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// rawResponse mirrors the union of all response shapes so one Unmarshal pass
// can dispatch on type. Missing fields default; unknown fields are ignored.
type rawResponse struct {
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	GhostText    string   `json:"ghost_text"`
	Candidates   []string `json:"candidates"`
	Confidence   float64  `json:"confidence"`
	Source       string   `json:"source"`
	ElapsedMs    int      `json:"elapsed_ms"`
	RequestID    string   `json:"request_id"`
	Suggestion   string   `json:"suggestion"`
	ReplaceRange []int    `json:"replace_range"`
	Message      string   `json:"message"`
}

// DecodeResponse parses one response line. Error frames yield a Response
// with no result and a nil error; frames without a recognized type fail
// with ErrMalformed. Optional fields never cause a failure.
func DecodeResponse(line []byte) (Response, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Response{}, ErrMalformed
	}

	var raw rawResponse
	if err := json.Unmarshal(line, &raw); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch raw.Type {
	case "predict":
		candidates := raw.Candidates
		if candidates == nil {
			candidates = []string{}
		}
		return Response{Predict: &PredictResponse{
			ID:         raw.ID,
			GhostText:  raw.GhostText,
			Candidates: candidates,
			Confidence: raw.Confidence,
			Source:     raw.Source,
			ElapsedMs:  raw.ElapsedMs,
		}}, nil
	case "suggestion":
		rsp := &SuggestionResponse{
			RequestID:  raw.RequestID,
			Suggestion: raw.Suggestion,
			Confidence: raw.Confidence,
		}
		if len(raw.ReplaceRange) >= 2 {
			rsp.ReplaceStart = raw.ReplaceRange[0]
			rsp.ReplaceEnd = raw.ReplaceRange[1]
		}
		return Response{Suggestion: rsp}, nil
	case "pong":
		return Response{Pong: true}, nil
	case "error":
		// The daemon reported a failure for this request; treat as no result.
		return Response{}, nil
	case "":
		return Response{}, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return Response{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, raw.Type)
	}
}
