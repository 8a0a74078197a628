package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ipede/authorization-server/internal/domain"
	"go.uber.org/zap"
)

// ClientNotifier delivers CIBA ping and push notifications to the client's
// registered backchannel notification endpoint, authenticated with the
// client_notification_token the client supplied on the request.
type ClientNotifier struct {
	client *http.Client
	logger *zap.Logger
}

func NewClientNotifier(client *http.Client, logger *zap.Logger) *ClientNotifier {
	return &ClientNotifier{client: client, logger: logger}
}

// NotifyPing tells the client the transaction completed and can be polled once
func (n *ClientNotifier) NotifyPing(ctx context.Context, notificationURI, notificationToken, authReqID string) error {
	payload := map[string]interface{}{"auth_req_id": authReqID}
	return n.post(ctx, notificationURI, notificationToken, payload)
}

// NotifyPush delivers the issued token set directly to the client
func (n *ClientNotifier) NotifyPush(ctx context.Context, notificationURI, notificationToken, authReqID string, token *domain.OAuthToken) error {
	payload := map[string]interface{}{
		"auth_req_id":  authReqID,
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   int64(time.Until(token.AccessTokenExpiresAt).Seconds()),
	}
	if token.RefreshToken != "" {
		payload["refresh_token"] = token.RefreshToken
	}
	if token.IDToken != "" {
		payload["id_token"] = token.IDToken
	}
	return n.post(ctx, notificationURI, notificationToken, payload)
}

func (n *ClientNotifier) post(ctx context.Context, notificationURI, notificationToken string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notificationURI, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+notificationToken)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("Failed to deliver client notification", zap.Error(err))
		return fmt.Errorf("failed to deliver notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
