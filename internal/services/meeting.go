package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Meeting carries the two roles of a meeting URL. The host link authorizes
// starting the meeting and expires upstream; the join link is stable.
type Meeting struct {
	HostLink string
	JoinLink string
}

// MeetingProvider is the video-conferencing collaborator. RefreshHostLink
// exchanges a possibly-expired host link for a live one and must be called
// right before the link is used, never cached.
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, topic string, startTime time.Time, durationMinutes int) (*Meeting, error)
	RefreshHostLink(ctx context.Context, oldLink string) (string, error)
}

// ZoomClient talks to the Zoom REST API using server-to-server OAuth.
type ZoomClient struct {
	accountID    string
	clientID     string
	clientSecret string
	apiBase      string
	tokenURL     string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewZoomClient(accountID, clientID, clientSecret string) *ZoomClient {
	return &ZoomClient{
		accountID:    accountID,
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBase:      "https://api.zoom.us",
		tokenURL:     "https://zoom.us/oauth/token",
		httpClient:   http.DefaultClient,
	}
}

func (z *ZoomClient) token(ctx context.Context) (string, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	// Reuse the cached token with a minute of slack before expiry.
	if z.accessToken != "" && time.Now().Add(time.Minute).Before(z.tokenExpiry) {
		return z.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", z.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(z.clientID, z.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch zoom token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("fetch zoom token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode zoom token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("zoom token missing from response")
	}

	z.accessToken = tokenResp.AccessToken
	z.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return z.accessToken, nil
}

func (z *ZoomClient) CreateMeeting(ctx context.Context, topic string, startTime time.Time, durationMinutes int) (*Meeting, error) {
	token, err := z.token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"topic":      topic,
		"type":       2,
		"start_time": startTime.UTC().Format("2006-01-02T15:04:05Z"),
		"duration":   durationMinutes,
		"settings": map[string]any{
			"join_before_host": false,
			"waiting_room":     true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal meeting payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.apiBase+"/v2/users/me/meetings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build meeting request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("create meeting: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var meetingResp struct {
		StartURL string `json:"start_url"`
		JoinURL  string `json:"join_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meetingResp); err != nil {
		return nil, fmt.Errorf("decode meeting response: %w", err)
	}
	if meetingResp.StartURL == "" || meetingResp.JoinURL == "" {
		return nil, fmt.Errorf("meeting links missing from response")
	}

	return &Meeting{HostLink: meetingResp.StartURL, JoinLink: meetingResp.JoinURL}, nil
}

// RefreshHostLink re-fetches the meeting named in a stored host link and
// returns its current start URL, which carries a fresh host authorization
// token.
func (z *ZoomClient) RefreshHostLink(ctx context.Context, oldLink string) (string, error) {
	meetingID, err := meetingIDFromLink(oldLink)
	if err != nil {
		return "", err
	}

	token, err := z.token(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, z.apiBase+"/v2/meetings/"+meetingID, nil)
	if err != nil {
		return "", fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh host link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("refresh host link: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var meetingResp struct {
		StartURL string `json:"start_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meetingResp); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if meetingResp.StartURL == "" {
		return "", fmt.Errorf("start url missing from response")
	}
	return meetingResp.StartURL, nil
}

// meetingIDFromLink pulls the numeric meeting id out of a Zoom start URL,
// e.g. https://zoom.us/s/91234567890?zak=...
func meetingIDFromLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse host link: %w", err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 || segments[len(segments)-1] == "" {
		return "", fmt.Errorf("host link %q has no meeting id", link)
	}
	return segments[len(segments)-1], nil
}
