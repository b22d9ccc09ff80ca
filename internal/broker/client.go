package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// IST is the exchange timezone used by SmartAPI query parameters.
var IST = time.FixedZone("IST", 5*3600+30*60)

// Client talks to the SmartAPI REST endpoints.
type Client struct {
	BaseURL    string
	APIKey     string
	LocalIP    string
	PublicIP   string
	MACAddress string
	Client     *http.Client
}

// NewClient creates a SmartAPI client with optional proxy support.
func NewClient(baseURL, apiKey, proxyURL string) *Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		LocalIP:    "127.0.0.1",
		PublicIP:   "127.0.0.1",
		MACAddress: "00:00:00:00:00:00",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// envelope is the response wrapper shared by every SmartAPI endpoint.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

func (e envelope) empty() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

func (c *Client) post(ctx context.Context, path, jwt string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", c.LocalIP)
	req.Header.Set("X-ClientPublicIP", c.PublicIP)
	req.Header.Set("X-MACAddress", c.MACAddress)
	req.Header.Set("X-PrivateKey", c.APIKey)
	if jwt != "" {
		req.Header.Set("Authorization", "Bearer "+jwt)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post %s: status %d, body: %s", path, resp.StatusCode, string(data))
	}
	return data, nil
}
