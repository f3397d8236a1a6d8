package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/localbiz/bizhub/internal/pkg/env"
)

const defaultVerifyURL = "https://hcaptcha.com/siteverify"

var (
	ErrEmptyToken = errors.New("hcaptcha token missing")
	ErrRejected   = errors.New("hcaptcha rejected token")
)

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks hCaptcha tokens. A verifier without a secret is disabled
// and accepts every request.
type Verifier struct {
	Secret     string
	VerifyURL  string
	HTTPClient *http.Client
}

func NewVerifierFromEnv() *Verifier {
	return &Verifier{
		Secret:     strings.TrimSpace(env.GetEnv("HCAPTCHA_SECRET", "")),
		VerifyURL:  env.GetEnv("HCAPTCHA_VERIFY_URL", defaultVerifyURL),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *Verifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

// Verify reports whether token passed the challenge.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	if !v.Enabled() {
		return true, nil
	}
	if token == "" {
		return false, ErrEmptyToken
	}

	form := url.Values{
		"secret":   {v.Secret},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("hcaptcha siteverify: %w", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("hcaptcha siteverify response: %w", err)
	}
	if !out.Success {
		return false, fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ", "))
	}
	return true, nil
}
