package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func TestHTTPProvider_NewSource(t *testing.T) {
	provider := NewHTTPProvider(&MockHTTPClient{})

	t.Run("URL validation", func(t *testing.T) {
		tests := []struct {
			url     string
			wantErr bool
			desc    string
		}{
			// Valid cases
			{"http://test.com", false, "basic HTTP URL"},
			{"https://test.com", false, "basic HTTPS URL"},
			{"  http://test.com   ", false, "URL with whitespace"},
			{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
			{"http://test.com:8080", false, "URL with port"},
			{"http://localhost:8080/test", false, "localhost with port"},
			{"http://123.123.123.123/test", false, "IP address"},
			{"http://mylocalnet/test", false, "single label hostname"},

			// Invalid cases
			{"", true, "empty string"},
			{" ", true, "whitespace only"},
			{"_", true, "invalid character"},
			{"ftp://test.com", true, "different scheme rejected"},
			{"test.com", true, "missing scheme"},
			{"http://user@test.com/path", true, "URL with user info"},
		}

		for _, tt := range tests {
			t.Run(tt.desc, func(t *testing.T) {
				source, err := provider.NewSource(createCfg(tt.url))

				if tt.wantErr {
					assert.Error(t, err)
					assert.Nil(t, source)
				} else {
					require.NoError(t, err)
					require.NotNil(t, source)
					assert.IsType(t, &HTTPAdapter{}, source)
				}
			})
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := provider.NewSource([]byte(`{"url":`))
		assert.Error(t, err)
	})
}

func TestHTTPAdapter_Content(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		client := &MockHTTPClient{}
		client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Method == http.MethodGet && req.URL.String() == "http://test.com/a.txt"
		})).Return(&http.Response{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Body:       io.NopCloser(strings.NewReader("remote bytes")),
		}, nil)

		source, err := NewHTTPProvider(client).NewSource(createCfg("http://test.com/a.txt"))
		require.NoError(t, err)
		data, err := source.Content(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "remote bytes", string(data))
		client.AssertExpectations(t)
	})

	t.Run("network error", func(t *testing.T) {
		client := &MockHTTPClient{}
		expErr := errors.New("connection refused")
		client.On("Do", mock.Anything).Return(nil, expErr)

		source, err := NewHTTPProvider(client).NewSource(createCfg("http://test.com"))
		require.NoError(t, err)
		_, err = source.Content(context.Background())
		assert.ErrorIs(t, err, expErr)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		client := &MockHTTPClient{}
		client.On("Do", mock.Anything).Return(&http.Response{
			StatusCode: http.StatusNotFound,
			Status:     "404 Not Found",
			Body:       io.NopCloser(strings.NewReader("")),
		}, nil)

		source, err := NewHTTPProvider(client).NewSource(createCfg("http://test.com"))
		require.NoError(t, err)
		_, err = source.Content(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("with custom headers and method", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte("posted"))
		}))
		defer srv.Close()

		method := HTTPMethodPost
		cfg := createCfgWithOpts(srv.URL, &method, map[string]string{"Authorization": "Bearer token"})
		source, err := NewHTTPProvider(srv.Client()).NewSource(cfg)
		require.NoError(t, err)
		data, err := source.Content(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "posted", string(data))
	})

	t.Run("canceled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("late"))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		source, err := NewHTTPProvider(srv.Client()).NewSource(createCfg(srv.URL))
		require.NoError(t, err)
		_, err = source.Content(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRegisterHTTP(t *testing.T) {
	t.Run("registers http provider", func(t *testing.T) {
		registry := NewRegistry()
		RegisterHTTP(registry)

		provider, err := registry.GetProvider("http")
		require.NoError(t, err)
		require.NotNil(t, provider)
		assert.IsType(t, &HTTPProvider{}, provider)
	})
}

// Test helpers

func createCfg(url string) []byte {
	return createCfgWithOpts(url, nil, nil)
}

func createCfgWithOpts(url string, method *HTTPMethod, headers map[string]string) []byte {
	config := struct {
		Type string `json:"type"`
		HTTPSource
	}{
		Type: HTTPSourceType,
		HTTPSource: HTTPSource{
			URL:     url,
			Method:  method,
			Headers: headers,
		},
	}
	data, _ := json.Marshal(config)
	return data
}

