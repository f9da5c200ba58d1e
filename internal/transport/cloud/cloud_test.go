package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) (*Backend, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	b, err := New(Config{URL: srv.URL, Token: "tok-123"}, srv.Client(), nil)
	require.NoError(t, err)
	return b, srv
}

func TestNew_RequiresURLAndToken(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{URL: "https://example.com"}, nil, nil)
	assert.Error(t, err)
}

func TestNew_StripsTrailingDataSegment(t *testing.T) {
	b, err := New(Config{URL: "https://example.com/api/data", Token: "tok"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/data", b.url("data"))
}

func TestReadJSON_SendsBearerToken(t *testing.T) {
	var gotAuth string
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"a":1}`))
	})

	data, err := b.ReadJSON(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestReadJSON_AbsentReturnsNilNil(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	data, err := b.ReadJSON(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestReadJSON_FallsBackToLegacyRoute(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data":
			w.WriteHeader(http.StatusNotFound)
		case "/legacy-data":
			w.Write([]byte(`{"legacy":true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	data, err := b.ReadJSON(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"legacy":true}`, string(data))
}

func TestWriteJSON_PutsToDataRoute(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, b.WriteJSON(context.Background(), []byte(`{"a":1}`)))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/data", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, `{"a":1}`, string(gotBody))
}

func TestGetPutDeleteFile(t *testing.T) {
	blobs := map[string][]byte{}
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path[len("/attachments/"):]
		switch r.Method {
		case http.MethodPut:
			buf := make([]byte, r.ContentLength)
			_, _ = r.Body.Read(buf)
			blobs[key] = buf
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			data, ok := blobs[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)
		case http.MethodHead:
			if _, ok := blobs[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			delete(blobs, key)
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	require.NoError(t, b.PutFile(ctx, "attachments/a1.pdf", "application/pdf", []byte("hello"), nil))

	exists, err := b.Exists(ctx, "attachments/a1.pdf")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := b.GetFile(ctx, "attachments/a1.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, b.DeleteFile(ctx, "attachments/a1.pdf"))

	exists, err = b.Exists(ctx, "attachments/a1.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteFile_NotFoundIsIdempotent(t *testing.T) {
	b, _ := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, b.DeleteFile(context.Background(), "attachments/missing.pdf"))
}
