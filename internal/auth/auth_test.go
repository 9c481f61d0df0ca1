package auth

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/httpclient"
)

var driveFilesURL = regexp.MustCompile(`/drive/v3/files`)

func newMockedProvider(t *testing.T) (*Provider, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	client := httpclient.New(&httpclient.Config{Base: transport})
	settings := conf.DefaultSettings().Auth
	return NewProvider(client, &settings, ""), transport
}

func TestCredentialRejectsEmptyToken(t *testing.T) {
	t.Parallel()

	p, _ := newMockedProvider(t)
	_, err := p.Credential("")
	require.ErrorIs(t, err, ErrEmptyToken)
}

func TestProbeValidToken(t *testing.T) {
	t.Parallel()

	p, transport := newMockedProvider(t)
	transport.RegisterRegexpResponder(http.MethodGet, driveFilesURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer ya29.valid", req.Header.Get("Authorization"))
		assert.Equal(t, "1", req.URL.Query().Get("pageSize"))
		return httpmock.NewStringResponse(http.StatusOK, `{"files":[]}`), nil
	})

	cred, err := p.Credential("ya29.valid")
	require.NoError(t, err)
	assert.True(t, cred.ProbeValidity(t.Context()))
}

func TestProbeRejectedToken(t *testing.T) {
	t.Parallel()

	p, transport := newMockedProvider(t)
	transport.RegisterRegexpResponder(http.MethodGet, driveFilesURL,
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`))

	cred, err := p.Credential("ya29.expired")
	require.NoError(t, err)

	err = cred.Probe(t.Context())
	require.ErrorIs(t, err, ErrTokenInvalid)
	assert.True(t, errors.IsCategory(err, errors.CategoryAuth))
	assert.False(t, cred.ProbeValidity(t.Context()))
}

func TestProbeNetworkFailureIsNotInvalidToken(t *testing.T) {
	t.Parallel()

	p, transport := newMockedProvider(t)
	transport.RegisterRegexpResponder(http.MethodGet, driveFilesURL, httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	cred, err := p.Credential("ya29.valid")
	require.NoError(t, err)

	err = cred.Probe(t.Context())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestRevoke(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"revoked", http.StatusOK, false},
		{"already invalid", http.StatusBadRequest, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, transport := newMockedProvider(t)
			transport.RegisterResponder(http.MethodPost, DefaultRevokeURL, func(req *http.Request) (*http.Response, error) {
				assert.NoError(t, req.ParseForm())
				assert.Equal(t, "ya29.tok", req.PostForm.Get("token"))
				return httpmock.NewStringResponse(tt.status, `{}`), nil
			})

			cred, err := p.Credential("ya29.tok")
			require.NoError(t, err)

			err = cred.Revoke(t.Context())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, transport.GetTotalCallCount())
		})
	}
}
