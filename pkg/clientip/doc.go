// Package clientip extracts the originating client address from requests that
// arrive through reverse proxies. Headers are consulted in descending trust
// order (CF-Connecting-IP, X-Forwarded-For, X-Real-IP) before falling back to
// the socket's remote address.
package clientip
