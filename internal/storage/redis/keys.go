package redis

import "fmt"

// Key prefix for all matchmaking data
const keyPrefix = "skirmish"

// userKey returns the Redis key for a credential row
func userKey(name string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, name)
}

// userIndexKey returns the Redis key for the SET of known usernames
func userIndexKey() string {
	return fmt.Sprintf("%s:idx:users", keyPrefix)
}
