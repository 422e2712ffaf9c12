package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopClientAlwaysFails(t *testing.T) {
	var c Client = NoopClient{}
	_, err := c.Submit(context.Background(), "c1", nil)
	require.Error(t, err)
}

func TestHTTPClientWithoutURLFailsFast(t *testing.T) {
	c := NewHTTPClient(Config{})
	_, err := c.Submit(context.Background(), "c1", []Blob{{Digest: "d", Bytes: []byte("x")}})
	require.Error(t, err)
}

func TestHTTPClientSubmitsBlobsAndParsesReceipt(t *testing.T) {
	var gotReq submitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(submitResponse{RemoteRef: "remote-1"})
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{URL: srv.URL, CredentialsRef: "token123"})
	receipt, err := c.Submit(context.Background(), "c1", []Blob{{Digest: "d", Bytes: []byte("x")}})
	require.NoError(t, err)
	require.Equal(t, "remote-1", receipt.RemoteRef)
	require.Equal(t, "c1", gotReq.ChangeID)
	require.Len(t, gotReq.Blobs, 1)
}

func TestHTTPClientNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{URL: srv.URL})
	_, err := c.Submit(context.Background(), "c1", nil)
	require.Error(t, err)
}
