// Package remote fetches layer exports from scanner endpoints over HTTP.
//
// New(config.Source) builds an *http.Client once per source and returns a
// Fetcher. Authentication (mTLS, API key, bearer token, basic auth) is
// applied by a shared round-tripper; secrets are resolved from the
// environment on every request so rotated values are picked up.
//
// Fetcher.Fetch GETs the source URL, requires HTTP 200, and decodes the body
// with dataset.DecodeLayers, so remote and local exports are validated the
// same way.
package remote
