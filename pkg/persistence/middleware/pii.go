package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/flowrun/pkg/domain"
	"github.com/aretw0/flowrun/pkg/ports"
)

// Mask replaces every redacted substring.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// CompilePatterns validates PII patterns ahead of NewPIIMiddleware.
func CompilePatterns(patternStrings []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(patternStrings))
	for _, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pii pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

// NewPIIMiddleware creates a middleware that masks substrings of user messages matching the patterns.
// It panics on an invalid pattern; use CompilePatterns to validate configuration first.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, session *domain.Session) error {
	// Snapshot copies the transcript so the engine's session stays untouched.
	cloned := session.Snapshot()
	for i, msg := range cloned.Transcript {
		if msg.Role != domain.RoleUser {
			continue
		}
		cloned.Transcript[i].Content = m.mask(msg.Content)
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
