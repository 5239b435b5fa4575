package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/comment-radar/internal/platform/api"
	"github.com/example/comment-radar/services/radar/internal/router"
)

// commandClient posts commands to /v1/commands/{action}.
type commandClient struct {
	base  string
	token string
	http  *http.Client
}

func newCommandClient(addr, token string, timeout time.Duration) *commandClient {
	return &commandClient{
		base:  strings.TrimRight(addr, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// do sends cmd and decodes the acknowledgement into out.
func (c *commandClient) do(ctx context.Context, cmd router.Command, out any) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/commands/"+url.PathEscape(cmd.Action), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s: %s (%s)", cmd.Action, envelope.Error.Message, envelope.Error.Code)
		}
		return fmt.Errorf("%s: unexpected status %d", cmd.Action, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", cmd.Action, err)
	}
	return nil
}
