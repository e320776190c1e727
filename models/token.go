package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Token holds the structure for the token collection in mongo. Tokens are
// the short-lived opaque bearer tokens handed to the browser for the
// websocket upgrade.
type Token struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	UserID    string             `bson:"userId"`
	Email     string             `bson:"email"`
	CreatedAt time.Time          `bson:"createdAt"`
}
