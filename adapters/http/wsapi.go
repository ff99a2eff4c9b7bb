package authhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const usedAddressAsPrimaryPath = "/wsapi/used_address_as_primary"

// WSAPIClient talks to the identity backend's web-service API.
type WSAPIClient struct {
	baseURL string
	hc      *http.Client
}

func NewWSAPIClient(baseURL string, hc *http.Client) *WSAPIClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &WSAPIClient{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), hc: hc}
}

// RecordUsedAddressAsPrimary implements core.PrimaryAddressRecorder.
func (c *WSAPIClient) RecordUsedAddressAsPrimary(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+usedAddressAsPrimaryPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build used_address_as_primary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("used_address_as_primary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("used_address_as_primary: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
