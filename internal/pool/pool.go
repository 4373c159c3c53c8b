// Package pool maintains the fixed set of backing-service account credentials
// and selects one for each operation, preferring accounts without recent failures.
package pool

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/click2025-space493/learnova-paltform-sub001/internal/config"
)

// ErrNoCredentials is returned when no usable credentials are configured.
// This is the only fatal condition; selection itself never fails.
var ErrNoCredentials = errors.New("no valid video host credentials configured")

const (
	// maxFailures is the failure count at which an account stops being preferred
	maxFailures = 3
	// coolDown is how long an account stays deprioritized after its last failure
	coolDown = 5 * time.Minute
)

// Credential identifies one backing-service account. Immutable once loaded.
type Credential struct {
	AccountID  string
	AuthKey    string
	AuthSecret string
}

// accountHealth is per-credential mutable bookkeeping
type accountHealth struct {
	failureCount int
	lastFailure  time.Time
}

// HealthSnapshot is a secret-free view of one account's health
type HealthSnapshot struct {
	AccountID string `json:"accountId"`
	Failures  int    `json:"failures"`
	Healthy   bool   `json:"healthy"`
}

// Pool holds the ordered credential set with a rotating selection cursor.
// Safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	creds  []Credential
	health map[string]*accountHealth
	cursor int
	now    func() time.Time
}

// placeholderValue reports whether a config field looks like an unfilled template value
func placeholderValue(v string) bool {
	if v == "" {
		return true
	}
	lower := strings.ToLower(v)
	return strings.Contains(lower, "your_") || strings.Contains(lower, "changeme")
}

// Load builds a pool from the configured accounts, dropping candidates with
// placeholder or missing fields. Returns ErrNoCredentials if nothing usable remains.
func Load(accounts []config.HostAccount) (*Pool, error) {
	p := &Pool{
		health: make(map[string]*accountHealth),
		now:    time.Now,
	}

	for _, a := range accounts {
		if placeholderValue(a.AccountID) || placeholderValue(a.AuthKey) || placeholderValue(a.AuthSecret) {
			continue
		}
		cred := Credential{
			AccountID:  a.AccountID,
			AuthKey:    a.AuthKey,
			AuthSecret: a.AuthSecret,
		}
		p.creds = append(p.creds, cred)
		p.health[cred.AccountID] = &accountHealth{}
	}

	if len(p.creds) == 0 {
		return nil, ErrNoCredentials
	}

	return p, nil
}

// healthyLocked reports account health. An account is healthy when it has no
// recorded failures, or fewer than maxFailures and its cool-down has elapsed.
// Accounts self-heal by time; transient host errors are common and permanently
// excluding an account wastes capacity.
func (p *Pool) healthyLocked(cred Credential) bool {
	h, ok := p.health[cred.AccountID]
	if !ok {
		return false
	}
	if h.failureCount == 0 {
		return true
	}
	return h.failureCount < maxFailures && p.now().Sub(h.lastFailure) > coolDown
}

// IsHealthy reports whether the credential currently qualifies as healthy
func (p *Pool) IsHealthy(cred Credential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthyLocked(cred)
}

// Select returns the next credential, round-robin among healthy accounts.
// The cursor always advances over the full list so rotation stays fair once an
// account recovers. If no account is currently healthy, the full list is used.
// Never fails once the pool is loaded.
func (p *Pool) Select() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	for i := 0; i < n; i++ {
		cred := p.creds[(p.cursor+i)%n]
		if p.healthyLocked(cred) {
			p.cursor = (p.cursor + i + 1) % n
			return cred
		}
	}

	// No healthy account: fall back to plain rotation over the full list
	cred := p.creds[p.cursor%n]
	p.cursor = (p.cursor + 1) % n
	return cred
}

// NextAfter returns the first healthy credential other than the excluded one,
// or, when none qualifies, the next credential in sequence after the excluded
// one. Used for failover between jobs; guarantees progress.
func (p *Pool) NextAfter(exclude Credential) Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	excludeIdx := 0
	for i, cred := range p.creds {
		if cred.AccountID == exclude.AccountID {
			excludeIdx = i
			continue
		}
		if p.healthyLocked(cred) {
			return cred
		}
	}

	return p.creds[(excludeIdx+1)%n]
}

// ByAccountID looks up a credential by its account identifier
func (p *Pool) ByAccountID(accountID string) (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cred := range p.creds {
		if cred.AccountID == accountID {
			return cred, true
		}
	}
	return Credential{}, false
}

// ReportFailure increments the credential's failure count and stamps the
// failure time. Bookkeeping only; never returns an error.
func (p *Pool) ReportFailure(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.health[cred.AccountID]
	if !ok {
		return
	}
	h.failureCount++
	h.lastFailure = p.now()
}

// ReportSuccess resets the credential's failure bookkeeping
func (p *Pool) ReportSuccess(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.health[cred.AccountID]
	if !ok {
		return
	}
	h.failureCount = 0
	h.lastFailure = time.Time{}
}

// Size returns the number of loaded credentials
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Snapshot returns a secret-free health view of every account, in load order
func (p *Pool) Snapshot() []HealthSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]HealthSnapshot, 0, len(p.creds))
	for _, cred := range p.creds {
		h := p.health[cred.AccountID]
		out = append(out, HealthSnapshot{
			AccountID: cred.AccountID,
			Failures:  h.failureCount,
			Healthy:   p.healthyLocked(cred),
		})
	}
	return out
}
