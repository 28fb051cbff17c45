// Package alertlog is the leveled, env-gated debug logger shared by every
// package in this module. It mirrors the teacher's logf(logType, fmt, args)
// helper: cheap to call, silent by default, and switched on per-category via
// an environment variable rather than a logging framework, since the core
// runs inside connections where a single verbose call site can dominate
// throughput if left unguarded.
package alertlog

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

type Category string

const (
	Handshake Category = "handshake"
	Crypto    Category = "crypto"
	IO        Category = "io"
	Verbose   Category = "verbose"
)

var (
	mu       sync.RWMutex
	enabled  = map[Category]bool{}
	initOnce sync.Once
)

func initFromEnv() {
	raw := os.Getenv("TLS13SRV_LOG")
	if raw == "" {
		return
	}
	for _, cat := range strings.Split(raw, ",") {
		enabled[Category(strings.TrimSpace(cat))] = true
	}
}

// Enable turns on logging for a category; used by tests that want to see
// the handshake trace without setting the environment variable.
func Enable(cat Category) {
	mu.Lock()
	defer mu.Unlock()
	enabled[cat] = true
}

func Logf(cat Category, format string, args ...interface{}) {
	initOnce.Do(func() {
		mu.Lock()
		initFromEnv()
		mu.Unlock()
	})
	mu.RLock()
	on := enabled[cat] || enabled["all"]
	mu.RUnlock()
	if !on {
		return
	}
	log.Output(2, fmt.Sprintf("[%s] %s", cat, fmt.Sprintf(format, args...)))
}
