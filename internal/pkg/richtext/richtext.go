// Package richtext normalizes rich-text editor input before it is stored:
// bare URLs become anchor tags and unsafe markup is stripped.
package richtext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// bareURL matches http(s) URLs that are not already inside an href or tag.
var bareURL = regexp.MustCompile(`(^|[\s>])(https?://[^\s<>"']+)`)

// Sanitizer linkifies and sanitizes advisor-supplied HTML.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds a sanitizer with a user-generated-content policy that
// keeps basic formatting and links.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("target", "rel").OnElements("a")
	return &Sanitizer{policy: policy}
}

// Process turns bare URLs into anchors and strips markup outside the
// allowed set. Empty input stays empty.
func (s *Sanitizer) Process(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	linkified := bareURL.ReplaceAllStringFunc(raw, func(match string) string {
		sub := bareURL.FindStringSubmatch(match)
		return fmt.Sprintf(`%s<a href="%s" target="_blank">%s</a>`, sub[1], sub[2], sub[2])
	})
	return s.policy.Sanitize(linkified)
}
