// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file implements credential handling for upstream requests.
// Session cookies are held in mlocked memory so they cannot be
// swapped to disk, with an explicit opt-in fallback for systems
// whose mlock limits are too low.
//
// Credentials are always passed explicitly. There is no package-level
// singleton and no ambient credential lookup; every Client owns the
// Credentials it was constructed with.
package perplexity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"

	"github.com/openplexity/openplexity/pkg/logging"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MinMlockLimitKB is the minimum mlock limit required to hold
	// cookie material in locked memory.
	MinMlockLimitKB = 64

	// InsecureMemoryEnv opts into plain-memory credential storage
	// when mlock limits are insufficient.
	InsecureMemoryEnv = "OPENPLEXITY_INSECURE_MEMORY"
)

var (
	// memguardInitOnce ensures memguard initialization happens once.
	memguardInitOnce sync.Once

	// mlockSufficient records whether locked memory is available.
	mlockSufficient bool

	// currentMlockLimitKB stores the current limit for logging.
	currentMlockLimitKB int64
)

// =============================================================================
// Credentials
// =============================================================================

// Credentials holds the session cookies and browser headers for
// upstream requests.
//
// The rendered Cookie header value lives in a memguard enclave and
// is decrypted only for the duration of each Headers call. The
// fallback insecure mode keeps it as a plain string.
//
// # Thread Safety
//
// Safe for concurrent use. The enclave is immutable after
// construction.
type Credentials struct {
	enclave  *memguard.Enclave
	insecure string
	present  bool
}

// NewCredentials builds Credentials from a cookie name→value map.
//
// An empty map yields anonymous credentials: requests go out without
// a Cookie header and the upstream treats them as a logged-out
// visitor. When mlock limits are insufficient and the insecure
// override is not set, an error is returned rather than silently
// keeping secrets in swappable memory.
func NewCredentials(cookies map[string]string, logger *logging.Logger) (*Credentials, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if len(cookies) == 0 {
		return &Credentials{}, nil
	}

	header := renderCookieHeader(cookies)

	initMemguard(logger)
	if !mlockSufficient {
		if os.Getenv(InsecureMemoryEnv) != "true" {
			return nil, fmt.Errorf(
				"mlock limit insufficient: have %d KB, need %d KB; raise the limit or set %s=true",
				currentMlockLimitKB, MinMlockLimitKB, InsecureMemoryEnv,
			)
		}
		logger.Warn("SECURITY: holding cookies in swappable memory",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", InsecureMemoryEnv+"=true",
		)
		return &Credentials{insecure: header, present: true}, nil
	}

	return &Credentials{
		enclave: memguard.NewEnclave([]byte(header)),
		present: true,
	}, nil
}

// LoadCookies reads a cookies file and returns the cookie map.
//
// Accepts both the wrapped form {"cookies": {name: value}} and a
// flat {name: value} object. The first existing path wins.
func LoadCookies(paths ...string) (map[string]string, error) {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read cookies file %s: %w", path, err)
		}

		var wrapper struct {
			Cookies map[string]string `json:"cookies"`
		}
		if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Cookies) > 0 {
			return wrapper.Cookies, nil
		}

		flat := map[string]string{}
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("parse cookies file %s: %w", path, err)
		}
		delete(flat, "cookies")
		return flat, nil
	}
	return nil, fmt.Errorf("no cookies file found in %v", paths)
}

// Present reports whether session cookies are configured.
func (c *Credentials) Present() bool {
	return c.present
}

// Headers renders a fresh header set for one upstream request,
// including the browser-imitation headers the upstream expects and
// the Cookie header when cookies are configured.
func (c *Credentials) Headers() (http.Header, error) {
	h := baseHeaders()
	if !c.present {
		return h, nil
	}

	if c.enclave != nil {
		buf, err := c.enclave.Open()
		if err != nil {
			return nil, fmt.Errorf("open credential enclave: %w", err)
		}
		h.Set("Cookie", buf.String())
		buf.Destroy()
		return h, nil
	}

	h.Set("Cookie", c.insecure)
	return h, nil
}

// Destroy wipes credential material. The Credentials value must not
// be used afterwards.
func (c *Credentials) Destroy() {
	c.enclave = nil
	c.insecure = ""
	c.present = false
}

// renderCookieHeader renders the Cookie header value with stable
// ordering so repeated renders are identical.
func renderCookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + cookies[name]
	}
	return strings.Join(pairs, "; ")
}

// baseHeaders returns the browser-imitation header set. The upstream
// fingerprints requests; plain Go client headers are rejected.
func baseHeaders() http.Header {
	h := http.Header{}
	h.Set("accept", "text/event-stream")
	h.Set("accept-language", "en-US,en;q=0.5")
	h.Set("content-type", "application/json")
	h.Set("origin", "https://www.perplexity.ai")
	h.Set("sec-ch-ua", `"Chromium";v="140", "Not=A?Brand";v="24", "Brave";v="140"`)
	h.Set("sec-ch-ua-arch", `"x86"`)
	h.Set("sec-ch-ua-bitness", `"64"`)
	h.Set("sec-ch-ua-mobile", "?0")
	h.Set("sec-ch-ua-platform", `"Linux"`)
	h.Set("sec-fetch-dest", "empty")
	h.Set("sec-fetch-mode", "cors")
	h.Set("sec-fetch-site", "same-origin")
	h.Set("sec-gpc", "1")
	h.Set("user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36")
	h.Set("x-perplexity-request-reason", "perplexity-query-state-provider")
	return h
}

// =============================================================================
// Memguard Initialization
// =============================================================================

// initMemguard initializes secure memory handling once per process.
func initMemguard(logger *logging.Logger) {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit(logger)
		if mlockSufficient {
			logger.Debug("secure memory initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		}
	})
}

// checkMlockLimit queries the kernel mlock resource limit and
// compares it against the minimum required.
func checkMlockLimit(logger *logging.Logger) (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		logger.Warn("could not determine mlock limit", "error", err.Error())
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}
