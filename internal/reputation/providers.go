package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Source is one external reputation provider. Attempt returns
// (score, true) when the provider produced a usable result; any error
// or missing credential means "try the next provider" and is never
// surfaced to resolve callers.
type Source interface {
	Name() string
	Configured() bool
	Attempt(ctx context.Context, ip string) (int, bool, error)
}

const providerTimeout = 5 * time.Second

func newProviderHTTPClient() *http.Client {
	return &http.Client{Timeout: providerTimeout}
}

// AbuseIPDBSource returns the provider's confidence score directly,
// already on the 0-100 scale.
type AbuseIPDBSource struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewAbuseIPDBSource(apiKey string) *AbuseIPDBSource {
	return &AbuseIPDBSource{
		APIKey:  apiKey,
		BaseURL: "https://api.abuseipdb.com",
		client:  newProviderHTTPClient(),
	}
}

func (s *AbuseIPDBSource) Name() string { return "abuseipdb" }

func (s *AbuseIPDBSource) Configured() bool { return s.APIKey != "" }

func (s *AbuseIPDBSource) Attempt(ctx context.Context, ip string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/api/v2/check", nil)
	if err != nil {
		return 0, false, err
	}
	q := req.URL.Query()
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", "60")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Key", s.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("abuseipdb returned status %d", resp.StatusCode)
	}

	var body struct {
		Data struct {
			AbuseConfidenceScore int `json:"abuseConfidenceScore"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, err
	}
	return body.Data.AbuseConfidenceScore, true, nil
}

// IPInfoSource applies a crude heuristic over network info: a flagged
// (bogon) address scores 80, everything else 20.
type IPInfoSource struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewIPInfoSource(apiKey string) *IPInfoSource {
	return &IPInfoSource{
		APIKey:  apiKey,
		BaseURL: "https://ipinfo.io",
		client:  newProviderHTTPClient(),
	}
}

func (s *IPInfoSource) Name() string { return "ipinfo" }

func (s *IPInfoSource) Configured() bool { return s.APIKey != "" }

func (s *IPInfoSource) Attempt(ctx context.Context, ip string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/"+ip, nil)
	if err != nil {
		return 0, false, err
	}
	q := req.URL.Query()
	q.Set("token", s.APIKey)
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("ipinfo returned status %d", resp.StatusCode)
	}

	var body struct {
		Bogon bool `json:"bogon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, err
	}
	if body.Bogon {
		return 80, true, nil
	}
	return 20, true, nil
}

// ShodanSource scores by exposure: 10 plus 5 per open port, capped at 100.
type ShodanSource struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewShodanSource(apiKey string) *ShodanSource {
	return &ShodanSource{
		APIKey:  apiKey,
		BaseURL: "https://api.shodan.io",
		client:  newProviderHTTPClient(),
	}
}

func (s *ShodanSource) Name() string { return "shodan" }

func (s *ShodanSource) Configured() bool { return s.APIKey != "" }

func (s *ShodanSource) Attempt(ctx context.Context, ip string) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/shodan/host/"+ip, nil)
	if err != nil {
		return 0, false, err
	}
	q := req.URL.Query()
	q.Set("key", s.APIKey)
	req.URL.RawQuery = q.Encode()

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("shodan returned status %d", resp.StatusCode)
	}

	var body struct {
		Ports []int `json:"ports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, err
	}

	score := 10 + len(body.Ports)*5
	if score > 100 {
		score = 100
	}
	return score, true, nil
}
