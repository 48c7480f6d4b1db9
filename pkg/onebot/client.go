// Package onebot implements a minimal OneBot v11 client: the HTTP API
// surface the engine needs plus a forward-WebSocket event stream.
package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sendlater/pkg/onebot/types"
)

// Client is the OneBot API surface used by the action executor and
// the reply path.
type Client interface {
	SendGroupMessage(ctx context.Context, groupID string, segments []types.Segment) (string, error)
	GetMessage(ctx context.Context, messageID string) ([]types.Segment, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

type ClientConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

type client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(cfg ClientConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// SendGroupMessage delivers segments to a group and returns the new
// message id.
func (c *client) SendGroupMessage(ctx context.Context, groupID string, segments []types.Segment) (string, error) {
	gid, err := types.ParseID(groupID)
	if err != nil {
		return "", fmt.Errorf("invalid group id %q: %w", groupID, err)
	}

	payload := map[string]interface{}{
		"group_id": gid,
		"message":  segments,
	}

	resp, err := c.call(ctx, "/send_group_msg", payload)
	if err != nil {
		return "", err
	}

	var data types.SendGroupMsgData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return "", fmt.Errorf("failed to decode send_group_msg data: %w", err)
	}
	return types.FormatID(data.MessageID), nil
}

// GetMessage resolves a message id to its segment content, used to
// materialize forwards.
func (c *client) GetMessage(ctx context.Context, messageID string) ([]types.Segment, error) {
	mid, err := types.ParseID(messageID)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", messageID, err)
	}

	resp, err := c.call(ctx, "/get_msg", map[string]interface{}{"message_id": mid})
	if err != nil {
		return nil, err
	}

	var data types.GetMsgData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode get_msg data: %w", err)
	}
	return data.Message, nil
}

// DeleteMessage recalls a previously sent message.
func (c *client) DeleteMessage(ctx context.Context, messageID string) error {
	mid, err := types.ParseID(messageID)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}

	_, err = c.call(ctx, "/delete_msg", map[string]interface{}{"message_id": mid})
	return err
}

func (c *client) call(ctx context.Context, endpoint string, payload interface{}) (*types.APIResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var result types.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s failed with status %d: %s", endpoint, resp.StatusCode, result.Wording)
	}
	if !result.OK() {
		msg := result.Wording
		if msg == "" {
			msg = result.Msg
		}
		return nil, fmt.Errorf("%s failed with retcode %d: %s", endpoint, result.RetCode, msg)
	}

	return &result, nil
}
