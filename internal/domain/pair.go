// Package domain defines the core persistence models for the application.
// This file holds the participant-pair normalization used by the
// conversations table.
package domain

// NormalizePair returns the two user ids in canonical storage order
// (lexicographically smaller id first). Conversations always store the pair
// normalized so that lookups are order-independent and the unique index on
// (user1_id, user2_id) holds exactly one row per unordered pair.
func NormalizePair(a, b string) (user1, user2 string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ViewerKeyUser and ViewerKeyIP build the dedup keys used by listing_views.
// Keys are prefixed so user ids and IP addresses can never collide.
func ViewerKeyUser(userID string) string { return "user:" + userID }

// ViewerKeyIP returns the anonymous viewer key for a client address.
func ViewerKeyIP(addr string) string { return "ip:" + addr }
