package openaicompat_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sg "github.com/ineyio/speechgate"
	"github.com/ineyio/speechgate/engine/openaicompat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() sg.EngineRequest {
	return sg.EngineRequest{
		Clip:     sg.Clip{Path: "/tmp/clip-1.wav", Data: []byte("RIFF....WAVE")},
		Language: "en-US",
	}
}

func TestTranscribe_SendsMultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "large-v3", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "clip-1.wav", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF....WAVE", string(data))

		w.Write([]byte(`{"text":"  they call me  "}`))
	}))
	defer srv.Close()

	e := openaicompat.New("whisper-server", srv.URL+"/v1/",
		openaicompat.WithAPIKey("tok"),
		openaicompat.WithModel("large-v3"),
	)
	assert.Equal(t, "whisper-server", e.Name())

	tr, err := e.Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "they call me", tr.Text)
	assert.Empty(t, tr.Results)
}

func TestTranscribe_NoAuthHeaderWithoutKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	_, err := openaicompat.New("local", srv.URL).Transcribe(context.Background(), testRequest())
	require.NoError(t, err)
}

func TestTranscribe_BlankTextIsUnintelligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"   "}`))
	}))
	defer srv.Close()

	_, err := openaicompat.New("local", srv.URL).Transcribe(context.Background(), testRequest())
	assert.ErrorIs(t, err, sg.ErrUnintelligible)
}

func TestTranscribe_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, sg.ErrAuthFailed},
		{http.StatusTooManyRequests, sg.ErrRateLimited},
		{http.StatusBadGateway, sg.ErrServiceRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := openaicompat.New("local", srv.URL).Transcribe(context.Background(), testRequest())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
