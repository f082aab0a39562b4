// Package domain defines the persistence models for conversations, messages,
// blocks, and listing engagement. These types are mapped with GORM and form
// the core data layer of the marketplace messaging backend.
package domain

import (
	"time"
)

// User is a read-only profile summary owned by the identity provider.
// This core references user rows for conversation payloads but never
// creates, updates, or deletes them.
//
// Fields:
//   - ID: opaque identity issued by the session provider.
//   - DisplayName / AvatarURL: presentation data for participant summaries.
type User struct {
	ID          string    `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255)"`
	AvatarURL   string    `json:"avatar_url"   gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation represents the single thread between an unordered pair of
// users, optionally anchored to the listing that started the contact.
//
// Invariants:
//   - User1ID < User2ID (normalized pair, see NormalizePair); the unique
//     index ux_conversation_pair guarantees one row per pair and is what
//     makes concurrent get-or-create converge on a single conversation.
//   - ListingID records the first listing context only; later contacts about
//     a different listing reuse the same conversation.
//   - UpdatedAt advances to the CreatedAt of every new message.
type Conversation struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	User1ID   string    `json:"user1_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_pair,priority:1;index:idx_user1_convs"`
	User2ID   string    `json:"user2_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_conversation_pair,priority:2;index:idx_user2_convs"`
	ListingID *string   `json:"listing_id,omitempty" gorm:"type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Participants returns both participant ids in stored (normalized) order.
func (c Conversation) Participants() [2]string { return [2]string{c.User1ID, c.User2ID} }

// HasParticipant reports whether userID is one of the two participants.
func (c Conversation) HasParticipant(userID string) bool {
	return userID == c.User1ID || userID == c.User2ID
}

// Other returns the counterpart of userID in the conversation, or "" when
// userID is not a participant.
func (c Conversation) Other(userID string) string {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	}
	return ""
}

// Message is a single append-only entry in a conversation transcript.
//
// Invariants:
//   - SenderID is one of the conversation's two participants.
//   - Content is non-empty after trimming and at most 5000 runes (enforced
//     by the service layer).
//   - IsRead transitions false→true only, by the recipient's read action.
//   - Ordering is CreatedAt ascending with ID as the tie-breaker.
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	SenderID       string    `json:"sender_id"       gorm:"type:varchar(64);not null"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	IsRead         bool      `json:"is_read"         gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`

	// Conversation is the parent thread. Messages are cascade-deleted
	// if their conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Block is a directional blocker→blocked relation. At most one row exists
// per ordered pair (unique index), and a user cannot block themselves
// (service-level rule). Blocks gate message sends and conversation creation
// but are not enforced retroactively on existing transcripts.
type Block struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	BlockerID string    `json:"blocker_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_block_pair,priority:1"`
	BlockedID string    `json:"blocked_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_block_pair,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Block.
func (Block) TableName() string { return "blocks" }

// Listing is the slice of the listings table this core touches: the
// monotonically increasing view counter. Listing CRUD lives elsewhere;
// ViewCount is only ever advanced with an atomic `view_count + 1` update.
type Listing struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	SellerID  string    `json:"seller_id"  gorm:"type:varchar(64);not null;index"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	ViewCount int64     `json:"view_count" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Listing.
func (Listing) TableName() string { return "listings" }

// ListingView is the dedup bookkeeping row behind the view counter: at most
// one counted view per (listing, viewer key) per rolling window. ViewerKey is
// "user:<id>" for identified viewers and "ip:<addr>" for anonymous ones.
//
// WindowStart is CreatedAt truncated to the dedup window. The rolling-window
// lookup on CreatedAt decides whether a view counts; the unique index on
// (listing, viewer key, window start) makes concurrent inserts for the same
// viewer collide instead of both committing.
type ListingView struct {
	ID          string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ListingID   string    `json:"listing_id" gorm:"type:char(36);not null;index:idx_listing_viewer,priority:1;uniqueIndex:ux_listing_view_bucket,priority:1"`
	ViewerKey   string    `json:"viewer_key" gorm:"type:varchar(128);not null;index:idx_listing_viewer,priority:2;uniqueIndex:ux_listing_view_bucket,priority:2"`
	WindowStart time.Time `json:"-"          gorm:"not null;uniqueIndex:ux_listing_view_bucket,priority:3"`
	CreatedAt   time.Time `json:"created_at" gorm:"index:idx_listing_viewer,priority:3"`
}

// TableName returns the database table name for ListingView.
func (ListingView) TableName() string { return "listing_views" }
