package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/infrastructure/cache"
	"workshop/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

const (
	ctxIdempotencyKey         = "idempotency_key"
	ctxIdempotencyFingerprint = "idempotency_fingerprint"
	ctxIdempotencyStore       = "idempotency_store"
)

// IdempotencyStore locks and replays requests by client key.
type IdempotencyStore interface {
	Acquire(ctx context.Context, key, fingerprint string) (*cache.Replay, error)
	Complete(ctx context.Context, key, fingerprint string, resp cache.Replay) error
	Release(ctx context.Context, key string) error
}

// Idempotency middleware protects against duplicate requests. A repeated
// submit or cancel with the same X-Idempotency-Key replays the first
// response instead of posting twice.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, err := io.ReadAll(limited)
		if err != nil {
			_ = c.Error(apperror.NewValidation("failed to read request body").WithCause(err))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// Keys are scoped per user.
		scoped := appctx.GetUserID(c.Request.Context()) + ":" + key
		fingerprint := requestFingerprint(c.Request.Method+" "+c.Request.URL.Path, body)

		replay, err := store.Acquire(c.Request.Context(), scoped, fingerprint)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			if replay.StatusCode == http.StatusNoContent {
				c.Status(http.StatusNoContent)
			} else {
				c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			}
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, scoped)
		c.Set(ctxIdempotencyFingerprint, fingerprint)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores the response of a guarded request for replay.
// It is a no-op when the request carried no idempotency key.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	store, key, fingerprint, ok := idempotencyState(c)
	if !ok {
		return
	}
	resp := cache.Replay{StatusCode: statusCode, ContentType: contentType, Body: body}
	if err := store.Complete(c.Request.Context(), key, fingerprint, resp); err != nil {
		logger.Warn(c.Request.Context(), "idempotency complete failed", "error", err)
	}
}

func releaseIdempotency(c *gin.Context) {
	store, key, _, ok := idempotencyState(c)
	if !ok {
		return
	}
	if err := store.Release(c.Request.Context(), key); err != nil {
		logger.Warn(c.Request.Context(), "idempotency release failed", "error", err)
	}
}

func idempotencyState(c *gin.Context) (IdempotencyStore, string, string, bool) {
	v, exists := c.Get(ctxIdempotencyStore)
	if !exists {
		return nil, "", "", false
	}
	store, ok := v.(IdempotencyStore)
	if !ok || store == nil {
		return nil, "", "", false
	}
	return store, c.GetString(ctxIdempotencyKey), c.GetString(ctxIdempotencyFingerprint), true
}

func requestFingerprint(operation string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
