package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePredictRoundTrip(t *testing.T) {
	req := PredictRequest{
		ID:              "42",
		Prefix:          "今天\n我们",
		Suffix:          "吃饭",
		Language:        LanguageZh,
		Mode:            ModeFim,
		MaxTokens:       8,
		LatencyBudgetMs: 5000,
	}

	line, err := EncodePredict(req)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(line, []byte("\n")), "frame must be newline terminated")
	require.Equal(t, 1, bytes.Count(line, []byte("\n")), "frame must be a single line")

	var decoded PredictRequest
	require.NoError(t, json.Unmarshal(line, &decoded))
	req.Type = "predict"
	assert.Equal(t, req, decoded)
}

func TestEncodePredictDefaults(t *testing.T) {
	line, err := EncodePredict(PredictRequest{ID: "1", Prefix: "hel"})
	require.NoError(t, err)

	var decoded PredictRequest
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, LanguageZh, decoded.Language)
	assert.Equal(t, ModeFim, decoded.Mode)
}

func TestEncodeSuggest(t *testing.T) {
	line, err := EncodeSuggest(SuggestRequest{
		RequestID: "7",
		Context:   "hello wor",
		Cursor:    9,
		MaxLen:    32,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, "suggest", decoded["type"])
	assert.Equal(t, "auto", decoded["language_hint"])
	assert.Equal(t, float64(9), decoded["cursor"])
}

func TestEncodeCancel(t *testing.T) {
	line, err := EncodeCancel("9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"cancel","request_id":"9"}`, string(bytes.TrimSpace(line)))
}

func TestStringEscapingIsSymmetric(t *testing.T) {
	// The characters the daemon protocol escapes must survive a full
	// encode/decode cycle unchanged.
	tricky := "a\\b\"c\nd\re\tf"
	line, err := EncodePredict(PredictRequest{ID: "1", Prefix: tricky, Suffix: tricky})
	require.NoError(t, err)
	require.Equal(t, 1, bytes.Count(line, []byte("\n")))

	var decoded PredictRequest
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, tricky, decoded.Prefix)
	assert.Equal(t, tricky, decoded.Suffix)
}

func TestDecodePredictResponse(t *testing.T) {
	line := []byte(`{"type":"predict","ghost_text":"我们去吃饭","candidates":["你好","你们"],"confidence":0.8,"source":"local_fim","elapsed_ms":12}`)
	rsp, err := DecodeResponse(line)
	require.NoError(t, err)
	require.NotNil(t, rsp.Predict)
	assert.Equal(t, "我们去吃饭", rsp.Predict.GhostText)
	assert.Equal(t, []string{"你好", "你们"}, rsp.Predict.Candidates)
	assert.InDelta(t, 0.8, rsp.Predict.Confidence, 1e-9)
	assert.Equal(t, "local_fim", rsp.Predict.Source)
	assert.Equal(t, 12, rsp.Predict.ElapsedMs)
}

func TestDecodePredictResponseDefaults(t *testing.T) {
	rsp, err := DecodeResponse([]byte(`{"type":"predict"}`))
	require.NoError(t, err)
	require.NotNil(t, rsp.Predict)
	assert.Empty(t, rsp.Predict.GhostText)
	assert.Empty(t, rsp.Predict.Candidates)
	assert.NotNil(t, rsp.Predict.Candidates)
	assert.Zero(t, rsp.Predict.Confidence)
	assert.Zero(t, rsp.Predict.ElapsedMs)
}

func TestDecodeSuggestionResponse(t *testing.T) {
	line := []byte(`{"type":"suggestion","request_id":"7","suggestion":"ld","confidence":0.91,"replace_range":[3,9]}`)
	rsp, err := DecodeResponse(line)
	require.NoError(t, err)
	require.NotNil(t, rsp.Suggestion)
	assert.Equal(t, "7", rsp.Suggestion.RequestID)
	assert.Equal(t, "ld", rsp.Suggestion.Suggestion)
	assert.Equal(t, 3, rsp.Suggestion.ReplaceStart)
	assert.Equal(t, 9, rsp.Suggestion.ReplaceEnd)
}

func TestDecodeToleratesWhitespace(t *testing.T) {
	line := []byte("  {\"type\" : \"suggestion\", \"request_id\" : \"1\", \"replace_range\" : [ 0 , 4 ]}  \n")
	rsp, err := DecodeResponse(line)
	require.NoError(t, err)
	require.NotNil(t, rsp.Suggestion)
	assert.Equal(t, 0, rsp.Suggestion.ReplaceStart)
	assert.Equal(t, 4, rsp.Suggestion.ReplaceEnd)
}

func TestDecodeErrorFrameYieldsNoResult(t *testing.T) {
	rsp, err := DecodeResponse([]byte(`{"type":"error","code":"internal","message":"model crashed"}`))
	require.NoError(t, err)
	assert.True(t, rsp.Empty())
}

func TestDecodePong(t *testing.T) {
	rsp, err := DecodeResponse([]byte(`{"id":"ping","type":"pong"}`))
	require.NoError(t, err)
	assert.True(t, rsp.Pong)
}

func TestDecodeMalformed(t *testing.T) {
	for _, line := range []string{
		``,
		`{}`,
		`{"ghost_text":"x"}`,
		`{"type":"wat"}`,
		`not json at all`,
	} {
		_, err := DecodeResponse([]byte(line))
		assert.ErrorIs(t, err, ErrMalformed, "line %q", line)
	}
}
