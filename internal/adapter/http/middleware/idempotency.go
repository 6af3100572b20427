package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"splatchain-ledger/internal/core/ports"
	"splatchain-ledger/pkg/apperror"
	"splatchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 128
	idempotencyClaimTTL  = 30 * time.Second
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a mutation is retried with the
// same Idempotency-Key. Keys are scoped per actor, and only 2xx responses are
// stored. A retry that arrives while the first request is still running is
// rejected with 409. Cache failures never block the request.
func Idempotency(cache ports.IdempotencyCache, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			key = key[:maxIdempotencyKeyLen]
		}
		scoped := c.GetString(CtxActor) + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		ctx := c.Request.Context()

		if raw, err := cache.Get(ctx, scoped); err != nil {
			log.Warn().Err(err).Msg("idempotency cache lookup failed")
		} else if raw != nil {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Header(HeaderReplayed, "true")
				c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
				c.Abort()
				return
			}
		}

		claimed, err := cache.Claim(ctx, scoped, idempotencyClaimTTL)
		if err != nil {
			log.Warn().Err(err).Msg("idempotency claim failed")
		} else if !claimed {
			response.Error(c, apperror.ErrRequestInFlight())
			c.Abort()
			return
		} else {
			defer func() {
				if err := cache.Release(context.WithoutCancel(ctx), scoped); err != nil {
					log.Warn().Err(err).Msg("idempotency release failed")
				}
			}()
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status < 200 || status >= 300 {
			return
		}
		raw, err := json.Marshal(cachedResponse{Status: status, Body: w.body.Bytes()})
		if err != nil {
			return
		}
		if err := cache.Set(ctx, scoped, raw, ttl); err != nil {
			log.Warn().Err(err).Msg("idempotency cache store failed")
		}
	}
}
