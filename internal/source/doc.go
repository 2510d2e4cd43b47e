// Package source retrieves roster calendar pages and turns them into
// records.
//
// A Fetcher returns the raw page for one configured site. DirFetcher reads
// pages saved on disk; HTTPFetcher requests them from the roster host with
// an existing session cookie. Collect walks the sites one at a time, pacing
// requests through a rate limiter, and fails the whole collection when any
// site fails so a partial roster is never committed.
package source
