package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPRefresher implementa Refresher contra el endpoint de tokens del
// proveedor de identidad de la plataforma.
type HTTPRefresher struct {
	tokenURL string
	clientID string
	client   *http.Client
	logger   *zap.Logger
}

func NewHTTPRefresher(tokenURL, clientID string, logger *zap.Logger) *HTTPRefresher {
	return &HTTPRefresher{
		tokenURL: tokenURL,
		clientID: clientID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	reqBody := struct {
		ClientID     string `json:"client_id"`
		GrantType    string `json:"grant_type"`
		RefreshToken string `json:"refresh_token"`
	}{
		ClientID:     r.clientID,
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Credentials{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.tokenURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return Credentials{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credentials{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if r.logger != nil {
			r.logger.Warn("token endpoint error",
				zap.Int("status", resp.StatusCode),
				zap.ByteString("body", respBody),
			)
		}
		return Credentials{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"AccessToken"`
		IDToken     string `json:"IdToken"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Credentials{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.AccessToken == "" {
		return Credentials{}, fmt.Errorf("token endpoint returned no access token")
	}

	return Credentials{
		AccessToken: parsed.AccessToken,
		IDToken:     parsed.IDToken,
	}, nil
}
