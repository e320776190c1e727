package handlers

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linguacall/linguacall-api/databases"
	"github.com/linguacall/linguacall-api/models"
)

// roomStore adapts the room collection to the relay's persistence surface.
type roomStore struct {
	DB databases.RoomDatabase
}

// Get returns the room document, or a nil room when the id is unknown.
func (s roomStore) Get(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.DB.FindOne(ctx, bson.M{"_id": roomID, "active": true})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return room, nil
}

// SetParticipant records the participant's language preferences on the room
// document so a rejoin after a server restart keeps the same pairing.
func (s roomStore) SetParticipant(ctx context.Context, roomID, language, voiceGender string) error {
	return s.DB.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$set": bson.M{
			"participantLanguage":    language,
			"participantVoiceGender": voiceGender,
			"lastActivity":           primitive.NewDateTimeFromTime(time.Now()),
		},
	})
}

// Touch refreshes the room's activity timestamp.
func (s roomStore) Touch(ctx context.Context, roomID string) error {
	return s.DB.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$set": bson.M{"lastActivity": primitive.NewDateTimeFromTime(time.Now())},
	})
}

// Deactivate soft-deletes the room once its session has ended. The janitor
// hard-deletes it after the retention window.
func (s roomStore) Deactivate(ctx context.Context, roomID string) error {
	return s.DB.UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$set": bson.M{
			"active":       false,
			"lastActivity": primitive.NewDateTimeFromTime(time.Now()),
		},
	})
}

// creditStore adapts the user collection to the relay's credit meter. One
// credit buys one second of conversation.
type creditStore struct {
	DB databases.UserDatabase
}

// Consume atomically debits seconds of usage from the creator's balance,
// floored at zero, and returns the remaining balance. Consuming zero seconds
// reads the balance without debiting.
func (s creditStore) Consume(ctx context.Context, userID string, seconds int64) (int64, bool, error) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return 0, false, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	if seconds <= 0 {
		user, err := s.DB.FindOne(ctx, bson.M{"_id": uID})
		if err != nil {
			return 0, false, err
		}
		return user.Details.Credits, user.Details.Credits <= 0, nil
	}

	// Aggregation-pipeline update so the subtract-and-floor happens in one
	// round trip, no matter how many rooms debit concurrently.
	update := bson.A{
		bson.M{"$set": bson.M{
			"user.credits": bson.M{
				"$max": bson.A{
					0,
					bson.M{"$subtract": bson.A{"$user.credits", seconds}},
				},
			},
		}},
	}
	user, err := s.DB.FindOneAndUpdate(ctx, bson.M{"_id": uID}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if err != nil {
		return 0, false, err
	}
	return user.Details.Credits, user.Details.Credits <= 0, nil
}
