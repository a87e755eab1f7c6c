package tracker

import (
	"net/url"
	"strings"
)

// knownDomains collapses regional and mobile subdomains of the big referrer
// platforms into one bucket (m.facebook.com and facebook.com are the same
// traffic source). Checked in order; first suffix match wins.
var knownDomains = []string{
	"facebook.com",
	"twitter.com",
	"instagram.com",
	"linkedin.com",
	"youtube.com",
	"pinterest.com",
	"tumblr.com",
	"reddit.com",
	"qq.com",
	"baidu.com",
	"weibo.com",
	"yy.com",
	"vk.com",
	"badoo.com",
}

// NormalizeHost extracts the canonical host from a referrer URL. It returns
// nil for an empty, unparsable, or host-less input. A leading "www." is
// stripped, then the host collapses to a known platform domain when it is a
// suffix of one.
func NormalizeHost(rawURL *string) *string {
	if rawURL == nil || *rawURL == "" {
		return nil
	}

	parsed, err := url.Parse(*rawURL)
	if err != nil {
		return nil
	}

	host := parsed.Hostname()
	if host == "" {
		return nil
	}

	host = strings.TrimPrefix(host, "www.")

	for _, domain := range knownDomains {
		if strings.HasSuffix(host, domain) {
			return &domain
		}
	}

	return &host
}
