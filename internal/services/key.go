package services

import "strings"

// ClimatePathPrefix is the route prefix in front of the country name
const ClimatePathPrefix = "/api/climate/"

// legacyTrimSet is every character of ClimatePathPrefix. Trimming with it
// removes those characters from both ends of the path, not the prefix itself.
const legacyTrimSet = "/apiclmte"

// KeyExtractor derives the country name from a request path
type KeyExtractor func(path string) string

// ExtractKeyPrefix removes the literal ClimatePathPrefix. Paths that do not
// start with the prefix yield an empty key. Everything after the prefix,
// including further slashes, is the key.
func ExtractKeyPrefix(path string) string {
	key, ok := strings.CutPrefix(path, ClimatePathPrefix)
	if !ok {
		return ""
	}
	return key
}

// ExtractKeyCharset reproduces the character-set trim of the first version of
// this service: any run of '/', 'a', 'p', 'i', 'c', 'l', 'm', 't', 'e' is
// stripped from both ends of the path. "/api/climate/China" yields "Chin".
func ExtractKeyCharset(path string) string {
	return strings.Trim(path, legacyTrimSet)
}
