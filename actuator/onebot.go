package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// OneBotClient talks to a OneBot-compatible HTTP API. Group and user ids are
// numeric strings everywhere in the engine; they are only parsed here, at the
// API boundary.
type OneBotClient struct {
	Host        string
	AccessToken string

	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Client = (*OneBotClient)(nil)

func NewOneBotClient(host, accessToken string, actionsPerSec int) *OneBotClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	if actionsPerSec <= 0 {
		actionsPerSec = 10
	}
	return &OneBotClient{
		Host:        strings.TrimSuffix(host, "/"),
		AccessToken: accessToken,
		httpClient:  rc.StandardClient(),
		limiter:     rate.NewLimiter(rate.Limit(actionsPerSec), actionsPerSec),
	}
}

type apiResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Msg     string          `json:"msg"`
	Wording string          `json:"wording"`
	Data    json.RawMessage `json:"data"`
}

func parseNumericID(kind, id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, id, err)
	}
	return n, nil
}

func (c *OneBotClient) call(ctx context.Context, action string, params any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/"+action, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s: HTTP %d", ErrPermissionDenied, action, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: HTTP %d", ErrTransport, action, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, action, err)
	}
	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, action, err)
	}
	if ar.Retcode != 0 {
		return apiError(action, &ar)
	}
	if out != nil && len(ar.Data) > 0 {
		if err := json.Unmarshal(ar.Data, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrTransport, action, err)
		}
	}
	return nil
}

// apiError classifies non-zero retcodes into the error taxonomy, by the
// platform's (loosely standardized) failure wording.
func apiError(action string, ar *apiResponse) error {
	desc := strings.ToLower(ar.Msg + " " + ar.Wording)
	switch {
	case strings.Contains(desc, "permission") || strings.Contains(desc, "权限"):
		return fmt.Errorf("%w: %s: retcode %d (%s)", ErrPermissionDenied, action, ar.Retcode, ar.Msg)
	case strings.Contains(desc, "not exist") || strings.Contains(desc, "not found") || strings.Contains(desc, "不存在"):
		return fmt.Errorf("%w: %s: retcode %d (%s)", ErrNotFound, action, ar.Retcode, ar.Msg)
	default:
		return fmt.Errorf("%w: %s: retcode %d (%s)", ErrTransport, action, ar.Retcode, ar.Msg)
	}
}

func (c *OneBotClient) Mute(ctx context.Context, group, user string, d time.Duration) error {
	gid, err := parseNumericID("group", group)
	if err != nil {
		return err
	}
	uid, err := parseNumericID("user", user)
	if err != nil {
		return err
	}
	return c.call(ctx, "set_group_ban", map[string]any{
		"group_id": gid,
		"user_id":  uid,
		"duration": int(d / time.Second),
	}, nil)
}

func (c *OneBotClient) DeleteMessage(ctx context.Context, messageID string) error {
	mid, err := parseNumericID("message", messageID)
	if err != nil {
		return err
	}
	return c.call(ctx, "delete_msg", map[string]any{
		"message_id": mid,
	}, nil)
}

func (c *OneBotClient) ResolveJoinRequest(ctx context.Context, flag string, approve bool, reason string) error {
	if !approve && reason == "" {
		reason = "request rejected"
	}
	if approve {
		reason = ""
	}
	return c.call(ctx, "set_group_add_request", map[string]any{
		"flag":     flag,
		"sub_type": "add",
		"approve":  approve,
		"reason":   reason,
	}, nil)
}

func (c *OneBotClient) LookupUserInfo(ctx context.Context, user string) (*UserInfo, error) {
	uid, err := parseNumericID("user", user)
	if err != nil {
		return nil, err
	}
	var data struct {
		UserID       int64  `json:"user_id"`
		Nickname     string `json:"nickname"`
		Level        *int   `json:"qqLevel"`
		LevelAlt     *int   `json:"level"`
		IsHideLevel  bool   `json:"isHideQQLevel"`
	}
	if err := c.call(ctx, "get_stranger_info", map[string]any{"user_id": uid}, &data); err != nil {
		return nil, err
	}
	info := &UserInfo{
		UserID:   user,
		Nickname: data.Nickname,
	}
	if !data.IsHideLevel {
		if data.Level != nil {
			info.Level = data.Level
		} else {
			info.Level = data.LevelAlt
		}
	}
	return info, nil
}

func (c *OneBotClient) SendGroupMessage(ctx context.Context, group, text string) error {
	gid, err := parseNumericID("group", group)
	if err != nil {
		return err
	}
	return c.call(ctx, "send_group_msg", map[string]any{
		"group_id": gid,
		"message":  text,
	}, nil)
}
