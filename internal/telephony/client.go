package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultAPIBaseURL = "https://api.twilio.com"

// APIError is a non-2xx answer from the Twilio REST API.
type APIError struct {
	HTTPStatus int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: http %d code %d: %s", e.HTTPStatus, e.Code, e.Message)
}

// ClientOptions configures the REST client. Zero values are replaced with defaults.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client is a thin Twilio REST client covering the calls, recordings, accounts
// and messages resources. Requests are bounded by the caller's context.
type Client struct {
	creds   Credentials
	baseURL string
	http    *http.Client
}

func NewClient(creds Credentials, opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		creds:   creds,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
	}
}

func (c *Client) AccountSID() string  { return c.creds.AccountSID }
func (c *Client) PhoneNumber() string { return c.creds.PhoneNumber }

type PlaceCallRequest struct {
	To                   string
	From                 string
	TwiML                string
	StatusCallback       string
	StatusCallbackEvents []string
	Record               bool
}

type PlaceCallResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Twiml", req.TwiML)
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, ev := range req.StatusCallbackEvents {
			form.Add("StatusCallbackEvent", ev)
		}
	}
	if req.Record {
		form.Set("Record", "true")
	}

	var out PlaceCallResult
	if err := c.do(ctx, http.MethodPost, c.accountPath("/Calls.json"), form, &out); err != nil {
		return PlaceCallResult{}, err
	}
	if out.SID == "" {
		return PlaceCallResult{}, errors.New("twilio: call accepted without sid")
	}
	return out, nil
}

type Account struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
}

func (c *Client) FetchAccount(ctx context.Context) (Account, error) {
	var out Account
	if err := c.do(ctx, http.MethodGet, c.accountPath(".json"), nil, &out); err != nil {
		return Account{}, err
	}
	return out, nil
}

// RecordingURL returns the media URL of the most recent recording of callSID,
// or "" when the call has no recording yet.
func (c *Client) RecordingURL(ctx context.Context, callSID string) (string, error) {
	var out struct {
		Recordings []struct {
			SID string `json:"sid"`
		} `json:"recordings"`
	}
	path := c.accountPath("/Calls/" + url.PathEscape(callSID) + "/Recordings.json")
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if len(out.Recordings) == 0 {
		return "", nil
	}
	return c.baseURL + c.accountPath("/Recordings/"+url.PathEscape(out.Recordings[0].SID)+".mp3"), nil
}

type MessageRequest struct {
	To   string
	From string
	Body string
}

type MessageResult struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (c *Client) SendMessage(ctx context.Context, req MessageRequest) (MessageResult, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	form.Set("Body", req.Body)

	var out MessageResult
	if err := c.do(ctx, http.MethodPost, c.accountPath("/Messages.json"), form, &out); err != nil {
		return MessageResult{}, err
	}
	return out, nil
}

func (c *Client) accountPath(suffix string) string {
	return "/2010-04-01/Accounts/" + url.PathEscape(c.creds.AccountSID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.creds.AccountSID, c.creds.AuthToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.HTTPStatus = resp.StatusCode
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("twilio: decode response: %w", err)
	}
	return nil
}
