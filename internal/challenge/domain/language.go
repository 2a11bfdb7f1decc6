package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// ResolveLanguage picks the language a challenge is served in.
// An explicit selector wins; an unsupported or malformed selector yields "en".
// Without a selector the Accept-Language header is matched against supported, in preference order.
func ResolveLanguage(selector, acceptLanguage string, supported []string) string {
	if s := strings.TrimSpace(selector); s != "" {
		if code, ok := baseCode(s); ok && contains(supported, code) {
			return code
		}
		return DefaultLanguage
	}
	if acceptLanguage == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return DefaultLanguage
	}
	for _, tag := range tags {
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		if code := base.String(); contains(supported, code) {
			return code
		}
	}
	return DefaultLanguage
}

func baseCode(s string) (string, bool) {
	tag, err := language.Parse(s)
	if err != nil {
		return "", false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", false
	}
	return base.String(), true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
