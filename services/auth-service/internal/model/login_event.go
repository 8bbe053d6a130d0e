package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// LoginEvent records a single login attempt by the raw username that was submitted.
type LoginEvent struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Username  string        `bson:"username"`
	Success   bool          `bson:"success"`
	Timestamp time.Time     `bson:"timestamp"`
}
