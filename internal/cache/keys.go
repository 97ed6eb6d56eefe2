package cache

import "fmt"

// RateLimitKey is the counter for an authenticated API key.
func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:key:%s", keyPrefix)
}

// RateLimitIPKey is the counter for an anonymous client address.
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("ratelimit:ip:%s", ip)
}
