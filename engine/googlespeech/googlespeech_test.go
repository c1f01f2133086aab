package googlespeech_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/engine/googlespeech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() sg.EngineRequest {
	return sg.EngineRequest{
		Clip:            sg.Clip{Data: []byte("RIFF....WAVE"), SampleRate: 16000, Channels: 1, BitDepth: 16},
		Language:        "en-AU",
		MaxAlternatives: 10,
	}
}

func TestTranscribe_SendsRecognizeRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/speech:recognize", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"call me","confidence":0.92,
			"words":[{"startTime":"0.100s","endTime":"0.400s","word":"call"},{"startTime":"0.400s","endTime":"0.700s","word":"me"}]}]}]}`))
	}))
	defer srv.Close()

	e := googlespeech.New("secret", googlespeech.WithBaseURL(srv.URL))
	tr, err := e.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)

	cfg := got["config"].(map[string]any)
	assert.Equal(t, "en-AU", cfg["languageCode"])
	assert.Equal(t, float64(10), cfg["maxAlternatives"])
	assert.Equal(t, true, cfg["enableWordTimeOffsets"])
	assert.Equal(t, "LINEAR16", cfg["encoding"])
	audio := got["audio"].(map[string]any)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFF....WAVE")), audio["content"])

	require.Len(t, tr.Results, 1)
	alt := tr.Results[0].Alternatives[0]
	assert.InDelta(t, 0.92, alt.Confidence, 1e-9)
	require.Len(t, alt.Words, 2)
	assert.Equal(t, "me", alt.Words[1].Word)
	assert.InDelta(t, 0.4, alt.Words[1].StartTime, 1e-9)
	assert.InDelta(t, 0.7, alt.Words[1].EndTime, 1e-9)
}

func TestTranscribe_WordsFromTranscriptWhenOffsetsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"alternatives":[
			{"transcript":"call me","confidence":0.9,"words":[{"word":"call"},{"word":"me"}]},
			{"transcript":"tall dome"}]}]}`))
	}))
	defer srv.Close()

	tr, err := googlespeech.New("k", googlespeech.WithBaseURL(srv.URL)).Transcribe(context.Background(), testRequest())
	require.NoError(t, err)

	second := tr.Results[0].Alternatives[1]
	require.Len(t, second.Words, 2)
	assert.Equal(t, "dome", second.Words[1].Word)
	assert.Zero(t, second.Confidence)
}

func TestTranscribe_NoResultsIsEmptyTranscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totalBilledTime":"15s","requestId":"42"}`))
	}))
	defer srv.Close()

	tr, err := googlespeech.New("k", googlespeech.WithBaseURL(srv.URL)).Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, tr.Results)
	assert.Empty(t, tr.Text)
}

func TestTranscribe_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, sg.ErrAuthFailed},
		{http.StatusForbidden, sg.ErrAuthFailed},
		{http.StatusTooManyRequests, sg.ErrRateLimited},
		{http.StatusBadRequest, sg.ErrServiceRequest},
		{http.StatusInternalServerError, sg.ErrServiceRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			}))
			defer srv.Close()

			_, err := googlespeech.New("k", googlespeech.WithBaseURL(srv.URL)).Transcribe(context.Background(), testRequest())
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, sg.IsEngineFailure(err))
		})
	}
}

func TestTranscribe_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := googlespeech.New("k", googlespeech.WithBaseURL(url)).Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, sg.ErrServiceRequest)
}

func TestTranscribe_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := googlespeech.New("k", googlespeech.WithBaseURL(srv.URL)).Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, sg.ErrServiceRequest)
}
