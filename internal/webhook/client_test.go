package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPost(t *testing.T) {
	var gotBody map[string]interface{}
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	err := c.Post(context.Background(), srv.URL, map[string]string{"form": "contact"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "contact", gotBody["form"])

	err = c.Post(context.Background(), srv.URL, json.RawMessage(`{"form":"wedding"}`))
	require.NoError(t, err)
	assert.Equal(t, "wedding", gotBody["form"])
}

func TestClientPostStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantErr   bool
		permanent bool
	}{
		{http.StatusAccepted, false, false},
		{http.StatusBadRequest, true, true},
		{http.StatusGone, true, true},
		{http.StatusRequestTimeout, true, false},
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewClient(time.Second).Post(context.Background(), srv.URL, map[string]int{})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.permanent, errors.Is(err, ErrPermanent))
		})
	}
}

func TestClientPostTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewClient(time.Second).Post(context.Background(), url, map[string]int{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPermanent))
}
