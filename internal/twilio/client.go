package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the carrier's REST API root.
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// Config holds carrier account credentials.
type Config struct {
	AccountSID string
	AuthToken  string
	From       string // caller id for outbound calls, E.164
	BaseURL    string // override for tests
	HTTPClient *http.Client
}

// Client places and controls calls through the carrier's REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a carrier client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// Call is the carrier's view of one call resource.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PlaceCall starts an outbound call that fetches its instructions from
// voiceURL once answered. Recording and answering-machine detection follow
// the account defaults used for agent calls.
func (c *Client) PlaceCall(ctx context.Context, to, voiceURL string) (*Call, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.From)
	form.Set("Url", voiceURL)
	form.Set("Record", "true")
	form.Set("MachineDetection", "DetectMessageEnd")
	form.Set("MachineDetectionTimeout", "3000")

	var call Call
	if err := c.do(ctx, http.MethodPost, "/Calls.json", form, &call); err != nil {
		return nil, fmt.Errorf("place call: %w", err)
	}
	return &call, nil
}

// GetCall fetches the current state of a call.
func (c *Client) GetCall(ctx context.Context, callSID string) (*Call, error) {
	var call Call
	if err := c.do(ctx, http.MethodGet, "/Calls/"+callSID+".json", nil, &call); err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &call, nil
}

// EndCall asks the carrier to complete an in-progress call.
func (c *Client) EndCall(ctx context.Context, callSID string) (*Call, error) {
	form := url.Values{}
	form.Set("Status", "completed")

	var call Call
	if err := c.do(ctx, http.MethodPost, "/Calls/"+callSID+".json", form, &call); err != nil {
		return nil, fmt.Errorf("end call: %w", err)
	}
	return &call, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	u := c.cfg.BaseURL + "/Accounts/" + c.cfg.AccountSID + path

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if decErr := json.NewDecoder(resp.Body).Decode(&apiErr); decErr == nil && apiErr.Message != "" {
			return fmt.Errorf("carrier api %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("carrier api status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
