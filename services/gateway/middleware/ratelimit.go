// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// =============================================================================
// Rate Limiting
// =============================================================================

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per client IP.
	RequestsPerSecond float64

	// Burst is how many requests a client may send at once.
	Burst int

	// IdleEviction drops a client's bucket after this much
	// inactivity. Zero means buckets live forever.
	IdleEviction time.Duration
}

// DefaultRateLimitConfig allows 5 req/s with a burst of 10, evicting
// buckets idle for an hour.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		IdleEviction:      time.Hour,
	}
}

// clientLimiter pairs a limiter with its last use for eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter holds the per-client buckets.
type rateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// RateLimit returns middleware enforcing a per-client-IP token
// bucket. Over-limit requests get 429.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	rl := &rateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
	}
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// allow takes one token from the client's bucket, creating it on
// first sight and evicting stale neighbors opportunistically.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, ok := rl.clients[clientIP]
	if !ok {
		client = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst),
		}
		rl.clients[clientIP] = client
		rl.evictStale(now)
	}
	client.lastSeen = now
	return client.limiter.Allow()
}

// evictStale removes buckets idle past the eviction window. Called
// with the lock held.
func (rl *rateLimiter) evictStale(now time.Time) {
	if rl.cfg.IdleEviction <= 0 {
		return
	}
	for ip, client := range rl.clients {
		if now.Sub(client.lastSeen) > rl.cfg.IdleEviction {
			delete(rl.clients, ip)
		}
	}
}
