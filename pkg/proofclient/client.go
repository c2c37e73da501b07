/**
 * @description
 * This package provides a client for communicating with the document-service.
 * It encapsulates the logic for registering an uploaded proof-of-payment and
 * receiving back the stable storage reference recorded on the transaction.
 */
package proofclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the document service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new document service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterProofRequest defines the request payload for registering a proof upload.
type RegisterProofRequest struct {
	Upload string `json:"upload"`
}

// RegisterProofResponse defines the response from registering a proof upload.
type RegisterProofResponse struct {
	Reference string `json:"reference"`
}

// Resolve calls the document-service to register an upload handle and returns
// the stable reference it assigned. Satisfies the ledger's ProofStorage port.
func (c *Client) Resolve(ctx context.Context, upload string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("document service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/proofs", c.baseURL)

	body, err := json.Marshal(RegisterProofRequest{Upload: upload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request to document service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("document service returned error status %d", resp.StatusCode)
	}

	var response RegisterProofResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return response.Reference, nil
}
