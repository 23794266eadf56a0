// Package cache provides the in-memory response cache used by the fetcher.
//
// Entries live for a fixed TTL measured from insertion; reading an entry never
// extends its life. The cache is bounded and evicts the least recently used
// entry when full. Keys are fingerprints of a target URL plus its fetch
// options, computed from canonical JSON so option ordering never matters.
package cache
