// Package cache keeps decoded audio so repeated inputs skip decoding.
// It has an in-memory L1 with a byte budget and TTL and an optional
// persistent, zstd-compressed disk L2.
package cache
