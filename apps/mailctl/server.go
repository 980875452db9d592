package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/piquadrat/paloma"
	"github.com/piquadrat/paloma/libs/mailer"
)

const (
	defaultOutboxLimit = 50
	maxOutboxLimit     = 500
)

type sendMailPayload struct {
	To       string `json:"to" binding:"required,email"`
	Body     string `json:"body" binding:"required"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

func (a *App) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(a.loggingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": a.mailer.ProviderName()})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/mail", a.sendMailHandler)
		api.GET("/outbox", a.listOutboxHandler)
		api.GET("/outbox/:id", a.outboxEntryHandler)
	}
	return r
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) sendMailHandler(c *gin.Context) {
	var payload sendMailPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "Invalid request payload"})
		return
	}

	mail := paloma.New(paloma.Mail{Subject: a.cfg.DefaultSubject}, paloma.WithMailer(a.mailer))
	result, err := mail.Send(c.Request.Context(), payload.To, payload.Body,
		paloma.WithSubject(payload.Subject),
		paloma.WithHTMLBody(payload.HTMLBody),
	)
	if err != nil {
		if errors.Is(err, paloma.ErrNoSubject) || errors.Is(err, mailer.ErrNoRecipients) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": err.Error()})
			return
		}
		a.log.Error("failed to send mail", "to", payload.To, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "delivery_failed", "message": "Mail could not be delivered"})
		return
	}

	a.log.Info("mail sent", "to", payload.To, "provider", a.mailer.ProviderName(), "message_id", result.ProviderMessageID)
	c.JSON(http.StatusAccepted, gin.H{"message_id": result.ProviderMessageID})
}

func (a *App) listOutboxHandler(c *gin.Context) {
	if a.outbox == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "outbox_unavailable", "message": "The configured provider keeps no outbox"})
		return
	}

	limit := defaultOutboxLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit", "message": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxOutboxLimit)
	}

	entries, err := a.outbox.List(c.Request.Context(), limit)
	if err != nil {
		a.log.Error("failed to list outbox", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if entries == nil {
		entries = []mailer.OutboxEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (a *App) outboxEntryHandler(c *gin.Context) {
	if a.outbox == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "outbox_unavailable", "message": "The configured provider keeps no outbox"})
		return
	}

	entry, err := a.outbox.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, mailer.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		a.log.Error("failed to load outbox entry", "id", c.Param("id"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
