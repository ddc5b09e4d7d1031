// Package client implements the authenticated, rate-limited API layer:
// session lifecycle, the resilient request executor, and the cursor-paginated
// day fetcher.
package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/errors"
)

// Credentials identify one API tenant. Input only, held for the process
// lifetime, never mutated.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Session owns the authenticated HTTP session: the token obtained from the
// auth exchange and the pooled transport carrying all subsequent calls.
// A session spans the whole run; the caller must guarantee Close runs on
// every exit path.
type Session struct {
	baseURL   string
	token     string
	transport *http.Transport
	http      *http.Client
	logger    *zap.Logger
}

type authResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// Open performs the single authentication exchange and returns a live
// session. Any failure is surfaced as a fatal authentication error:
// retrying with the same invalid credentials cannot succeed.
func Open(ctx context.Context, baseURL string, creds Credentials, logger *zap.Logger) (*Session, error) {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	form := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to build auth request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "auth request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		clsErr := classifyResponse(resp)
		transport.CloseIdleConnections()
		return nil, errors.Wrap(clsErr, errors.ErrorTypeAuthentication, "authentication failed")
	}

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		transport.CloseIdleConnections()
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "auth response not JSON")
	}
	if auth.Data.Token == "" {
		transport.CloseIdleConnections()
		return nil, errors.New(errors.ErrorTypeAuthentication, "auth response missing token")
	}

	logger.Info("session opened", zap.String("base_url", baseURL))

	return &Session{
		baseURL:   baseURL,
		token:     auth.Data.Token,
		transport: transport,
		http:      httpClient,
		logger:    logger,
	}, nil
}

// Close releases the underlying connection pool
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
	s.logger.Info("session closed")
}

// classifyResponse builds the typed error for a non-2xx response, using the
// status code primarily and the body's msg field for diagnostics.
func classifyResponse(resp *http.Response) *errors.Error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.FromStatusCode(resp.StatusCode, "response not JSON: "+string(body))
	}

	return errors.FromStatusCode(resp.StatusCode, envelope.Msg)
}
