package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piquadrat/paloma"
	"github.com/piquadrat/paloma/libs/mailer"
)

func newTestServer(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Cleanup(paloma.OverrideSettings(paloma.CurrentSettings()))
	mailer.ResetOutbox()
	t.Cleanup(mailer.ResetOutbox)

	cfg := &Config{
		MailerProvider:   "outbox",
		DefaultFromEmail: "default@example.com",
		DefaultFromName:  "Default sender",
		DefaultSubject:   "Notification",
	}
	app, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return app, app.newRouter()
}

func doRequest(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestNewAppConfiguresProcessSettings(t *testing.T) {
	app, _ := newTestServer(t)

	s := paloma.CurrentSettings()
	assert.Equal(t, "default@example.com", s.DefaultFromEmail)
	assert.Equal(t, "Default sender", s.DefaultFromName)
	assert.Same(t, app.mailer, s.Mailer)
	assert.Same(t, mailer.DefaultOutbox(), app.outbox)
}

func TestHealthz(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"outbox"}`, w.Body.String())
}

func TestSendMailHandlerUsesDefaults(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/mail", `{"to":"test@example.com","body":"Body of the e-mail"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		MessageID string `json:"message_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, resp.MessageID, sent[0].ID)
	assert.Equal(t, "Notification", sent[0].Message.Subject)
	assert.Equal(t, "Default sender <default@example.com>", sent[0].Message.From)
	assert.Equal(t, []string{"test@example.com"}, sent[0].Message.To)
	assert.Empty(t, sent[0].Message.Alternatives())
}

func TestSendMailHandlerWithSubjectAndHTML(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/mail",
		`{"to":"test@example.com","body":"Body","subject":"This is the subject","html_body":"<h1>Hi</h1>"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	entry, ok := mailer.DefaultOutbox().Last()
	require.True(t, ok)
	assert.Equal(t, "This is the subject", entry.Message.Subject)
	require.Len(t, entry.Message.Alternatives(), 1)
	assert.Equal(t, "<h1>Hi</h1>", entry.Message.Alternatives()[0].Content)
}

func TestSendMailHandlerRejectsInvalidPayload(t *testing.T) {
	_, router := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"body":"missing recipient"}`,
		`{"to":"not-an-address","body":"Body"}`,
		`{"to":"test@example.com"}`,
	} {
		w := doRequest(router, http.MethodPost, "/api/v1/mail", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, mailer.Sent())
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Send(context.Context, mailer.Message) (mailer.SendResult, error) {
	return mailer.SendResult{}, errors.New("connection refused")
}

func TestSendMailHandlerReportsDeliveryFailure(t *testing.T) {
	app, router := newTestServer(t)
	app.mailer = mailer.New(failingProvider{}, "default@example.com")

	w := doRequest(router, http.MethodPost, "/api/v1/mail", `{"to":"test@example.com","body":"Body"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "delivery_failed")
}

func TestListOutboxHandler(t *testing.T) {
	_, router := newTestServer(t)

	for _, subject := range []string{"first", "second", "third"} {
		w := doRequest(router, http.MethodPost, "/api/v1/mail",
			`{"to":"test@example.com","body":"Body","subject":"`+subject+`"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w := doRequest(router, http.MethodGet, "/api/v1/outbox?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []mailer.OutboxEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "third", resp.Entries[0].Message.Subject)
	assert.Equal(t, "second", resp.Entries[1].Message.Subject)

	w = doRequest(router, http.MethodGet, "/api/v1/outbox?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOutboxHandlerEmpty(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(router, http.MethodGet, "/api/v1/outbox", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entries":[]}`, w.Body.String())
}

func TestOutboxEntryHandler(t *testing.T) {
	_, router := newTestServer(t)

	w := doRequest(router, http.MethodPost, "/api/v1/mail", `{"to":"test@example.com","body":"Body"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := mailer.Sent()[0].ID

	w = doRequest(router, http.MethodGet, "/api/v1/outbox/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var entry mailer.OutboxEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, "Body", entry.Message.Text)

	w = doRequest(router, http.MethodGet, "/api/v1/outbox/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOutboxHandlersWithoutOutbox(t *testing.T) {
	app, router := newTestServer(t)
	app.outbox = nil

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/outbox", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/v1/outbox/any", "").Code)
}

func TestNewAppFallsBackToLogProvider(t *testing.T) {
	t.Cleanup(paloma.OverrideSettings(paloma.CurrentSettings()))

	app, err := newApp(context.Background(), &Config{MailerProvider: "log"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, "log", app.mailer.ProviderName())
	assert.Nil(t, app.outbox)
	assert.NoError(t, app.Close())
}

func TestNewAppSMTPProvider(t *testing.T) {
	t.Cleanup(paloma.OverrideSettings(paloma.CurrentSettings()))

	cfg := &Config{MailerProvider: "smtp", SMTP: mailer.SMTPConfig{Host: "smtp.example.com"}}
	app, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, "smtp", app.mailer.ProviderName())

	_, err = newApp(context.Background(), &Config{MailerProvider: "smtp"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, mailer.ErrSMTPHostRequired)
}
