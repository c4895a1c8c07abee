package trafficlight_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fujiwara/trafficlight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExpectCodeFunc(t *testing.T) {
	tests := []struct {
		codes     string
		testCases []struct {
			code       int
			expectTrue bool
		}
		expectErr bool
	}{
		{
			codes: "200,201,300-399",
			testCases: []struct {
				code       int
				expectTrue bool
			}{
				{200, true},
				{201, true},
				{300, true},
				{399, true},
				{400, false},
				{199, false},
			},
		},
		{
			codes: " 200 , 201 , 300 - 399 ",
			testCases: []struct {
				code       int
				expectTrue bool
			}{
				{200, true},
				{201, true},
				{300, true},
				{399, true},
				{400, false},
				{199, false},
			},
		},
		{
			codes:     "invalid",
			expectErr: true,
		},
		{
			codes:     "200-300-400",
			expectErr: true,
		},
	}

	for i, test := range tests {
		expectCodeFunc, err := trafficlight.NewExpectCodeFunc(test.codes)
		if (err != nil) != test.expectErr {
			t.Errorf("Test %d: expected error: %v, got: %v", i, test.expectErr, err)
			continue
		}
		if err != nil {
			continue
		}
		for _, testCase := range test.testCases {
			if got := expectCodeFunc(testCase.code); got != testCase.expectTrue {
				t.Errorf("Test %d: for code %d, expected %v but got %v", i, testCase.code, testCase.expectTrue, got)
			}
		}
	}
}

func TestWebhookNotifier(t *testing.T) {
	received := make(chan trafficlight.Transition, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		var tr trafficlight.Transition
		if err := json.NewDecoder(r.Body).Decode(&tr); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- tr
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	n, err := trafficlight.NewWebhookNotifier(&trafficlight.NotifierConfig{
		Name: "hook",
		Webhook: &trafficlight.WebhookNotifierConfig{
			URL:     ts.URL,
			Headers: map[string]string{"X-Token": "secret"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hook", n.Name())

	tr := trafficlight.Transition{
		Light:   "north",
		From:    trafficlight.PhaseRed,
		To:      trafficlight.PhaseGreen,
		At:      time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC),
		Elapsed: 5 * time.Second,
	}
	require.NoError(t, n.Notify(context.Background(), tr))
	got := <-received
	assert.Equal(t, tr.Light, got.Light)
	assert.Equal(t, tr.From, got.From)
	assert.Equal(t, tr.To, got.To)
	assert.True(t, tr.At.Equal(got.At))
	assert.Equal(t, tr.Elapsed, got.Elapsed)
}

func TestWebhookNotifierUnexpectedCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	n, err := trafficlight.NewWebhookNotifier(&trafficlight.NotifierConfig{
		Name:    "hook",
		Webhook: &trafficlight.WebhookNotifierConfig{URL: ts.URL, ExpectCode: "200"},
	})
	require.NoError(t, err)
	err = n.Notify(context.Background(), trafficlight.Transition{Light: "north"})
	assert.ErrorContains(t, err, "expect code not match: 202")
}

func TestNewWebhookNotifierInvalid(t *testing.T) {
	for _, cfg := range []*trafficlight.WebhookNotifierConfig{
		{URL: "ftp://example.com/"},
		{URL: "http://example.com/", ExpectCode: "abc"},
	} {
		_, err := trafficlight.NewWebhookNotifier(&trafficlight.NotifierConfig{Name: "x", Webhook: cfg})
		assert.Error(t, err, cfg.URL)
	}
}
