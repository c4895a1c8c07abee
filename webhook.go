package trafficlight

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type WebhookNotifierConfig struct {
	URL                string            `yaml:"url"`
	Method             string            `yaml:"method"`
	Headers            map[string]string `yaml:"headers"`
	ExpectCode         string            `yaml:"expect_code"`
	NoCheckCertificate bool              `yaml:"no_check_certificate"`
}

// WebhookNotifier sends every transition as a JSON document over HTTP.
type WebhookNotifier struct {
	URL            string
	Method         string
	Headers        map[string]string
	ExpectCodeFunc func(code int) bool

	name   string
	client *http.Client
}

func NewWebhookNotifier(cfg *NotifierConfig) (*WebhookNotifier, error) {
	p := &WebhookNotifier{
		name:    cfg.Name,
		Method:  cfg.Webhook.Method,
		Headers: cfg.Webhook.Headers,
	}
	u, err := url.Parse(cfg.Webhook.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", cfg.Webhook.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %s: scheme must be http or https", cfg.Webhook.URL)
	}
	p.URL = u.String()

	// default
	if p.Method == "" {
		p.Method = http.MethodPost
	}
	if cfg.Webhook.ExpectCode == "" {
		p.ExpectCodeFunc = func(code int) bool {
			return code >= 200 && code < 400
		}
	} else {
		p.ExpectCodeFunc, err = newExpectCodeFunc(cfg.Webhook.ExpectCode)
		if err != nil {
			return nil, fmt.Errorf("invalid expect_code %s: %w", cfg.Webhook.ExpectCode, err)
		}
	}
	p.client = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Webhook.NoCheckCertificate},
		},
	}
	return p, nil
}

func (p *WebhookNotifier) Name() string {
	return p.name
}

func (p *WebhookNotifier) Notify(ctx context.Context, t Transition) error {
	logger := newLoggerFromContext(ctx).With("name", p.name, "module", "webhooknotifier")

	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for name, value := range p.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("User-Agent", "trafficlight")

	logger.Debug(fmt.Sprintf("http request %s %s", req.Method, req.URL))
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !p.ExpectCodeFunc(resp.StatusCode) {
		return fmt.Errorf("expect code not match: %d", resp.StatusCode)
	}
	return nil
}

// newExpectCodeFunc parses a string of comma separated HTTP status codes and
// returns a function that checks if the given code is in the list.
// e.g. "200,201,202-204,300-399"
func newExpectCodeFunc(codes string) (func(code int) bool, error) {
	type codeRange struct{ lower, upper int }
	var parsedRanges []codeRange

	for _, r := range strings.Split(codes, ",") {
		r = strings.TrimSpace(r)
		bounds := strings.Split(r, "-")
		for i := range bounds {
			bounds[i] = strings.TrimSpace(bounds[i])
		}
		switch len(bounds) {
		case 1:
			code, err := strconv.Atoi(bounds[0])
			if err != nil {
				return nil, errors.New("invalid code: " + bounds[0])
			}
			parsedRanges = append(parsedRanges, codeRange{code, code})
		case 2:
			lower, err1 := strconv.Atoi(bounds[0])
			upper, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil {
				return nil, errors.New("invalid range: " + r)
			}
			parsedRanges = append(parsedRanges, codeRange{lower, upper})
		default:
			return nil, errors.New("invalid format: " + r)
		}
	}

	return func(code int) bool {
		for _, r := range parsedRanges {
			if r.lower <= code && code <= r.upper {
				return true
			}
		}
		return false
	}, nil
}
