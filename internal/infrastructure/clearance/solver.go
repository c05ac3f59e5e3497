package clearance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"profitsniffer/internal/domain/model"
)

const (
	DefaultTargetURL  = "https://dexscreener.com"
	DefaultCookieName = "cf_clearance"
	DefaultTimeout    = 360 * time.Second
)

// AcquisitionError means the solver could not produce a complete credential pair.
type AcquisitionError struct {
	Status int // HTTP status from the solver, 0 if none
	Reason string
	Err    error
}

func (e *AcquisitionError) Error() string {
	msg := "clearance acquisition failed"
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Acquirer obtains fresh credentials from an external solver.
type Acquirer interface {
	Acquire(ctx context.Context) (model.Credentials, error)
}

// SolverClient talks to a headless-browser solving service.
type SolverClient struct {
	solverURL  string
	targetURL  string
	cookieName string
	client     *http.Client
}

type solverRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

type solverResponse struct {
	Cookies []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"cookies"`
	Headers map[string]string `json:"headers"`
}

func NewSolverClient(solverURL, targetURL, cookieName string, timeout time.Duration) *SolverClient {
	if targetURL == "" {
		targetURL = DefaultTargetURL
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SolverClient{
		solverURL:  solverURL,
		targetURL:  targetURL,
		cookieName: cookieName,
		client:     &http.Client{Timeout: timeout},
	}
}

// Acquire asks the solver for a session. Both the clearance cookie and the
// user agent must be present, otherwise nothing is returned.
func (c *SolverClient) Acquire(ctx context.Context) (model.Credentials, error) {
	body, err := json.Marshal(solverRequest{URL: c.targetURL, Mode: "waf-session"})
	if err != nil {
		return model.Credentials{}, &AcquisitionError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.solverURL, bytes.NewReader(body))
	if err != nil {
		return model.Credentials{}, &AcquisitionError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Credentials{}, &AcquisitionError{Reason: "solver unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Credentials{}, &AcquisitionError{Status: resp.StatusCode, Reason: strings.TrimSpace(string(b))}
	}

	var out solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Credentials{}, &AcquisitionError{Status: resp.StatusCode, Reason: "malformed solver response", Err: err}
	}

	var creds model.Credentials
	for _, ck := range out.Cookies {
		if ck.Name == c.cookieName {
			creds.ClearanceToken = ck.Value
			break
		}
	}
	for k, v := range out.Headers {
		if strings.EqualFold(k, "user-agent") {
			creds.UserAgent = v
			break
		}
	}
	if !creds.Valid() {
		return model.Credentials{}, &AcquisitionError{Status: resp.StatusCode, Reason: "missing " + c.cookieName + " or user-agent"}
	}
	return creds, nil
}

var _ Acquirer = (*SolverClient)(nil)
