package dexscreener

import (
	"net/http"

	"profitsniffer/internal/domain/model"
)

// browserHeaders mimic a desktop browser navigation. Accept-Encoding is left to
// the transport so responses are decompressed transparently.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
	"TE":                        "trailers",
}

func applyBrowserHeaders(req *http.Request, creds model.Credentials, cookieName string) {
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if creds.UserAgent != "" {
		req.Header.Set("User-Agent", creds.UserAgent)
	}
	if creds.ClearanceToken != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: creds.ClearanceToken})
	}
}
