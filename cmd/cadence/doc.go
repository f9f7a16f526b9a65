// Command cadence recommends tracks from a static audio-feature catalog
// using the caller's Spotify listening history.
//
// Usage:
//
//	cadence login                 authorize with Spotify (PKCE)
//	cadence status                show the stored credential state
//	cadence recommend --top 20    rank the catalog against your top tracks
//	cadence profile               print the averaged audio features
//	cadence serve                 run the HTTP API
//	cadence logout                forget the stored credential
package main
