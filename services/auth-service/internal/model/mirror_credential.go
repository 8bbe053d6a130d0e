package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MirrorCredential is a credential document in the optional mirror store. It may
// exist without a canonical Identity (externally seeded) and vice versa.
type MirrorCredential struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Username     string        `bson:"username"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at,omitempty"`

	// PasswordVersion is the canonical PasswordVersion the hash was copied from,
	// zero for credentials that were never synced from the canonical store.
	PasswordVersion int64 `bson:"password_version,omitempty"`

	// BackLink holds the canonical Identity.ID once reconciled.
	BackLink *int64 `bson:"sql_user_id,omitempty"`
}

// LinkedTo reports whether the back-link already references canonicalID.
func (c *MirrorCredential) LinkedTo(canonicalID int64) bool {
	return c.BackLink != nil && *c.BackLink == canonicalID
}
