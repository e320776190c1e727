package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Room holds the structure for the room collection in mongo. A room is a
// two-party translation session: one creator and at most one participant.
type Room struct {
	ID                   string             `json:"_id" bson:"_id"`
	CreatorID            string             `json:"creatorId" bson:"creatorId"`
	CreatorLanguage      string             `json:"creatorLanguage" bson:"creatorLanguage"`
	CreatorVoiceGender   string             `json:"creatorVoiceGender" bson:"creatorVoiceGender"`
	ParticipantLanguage  string             `json:"participantLanguage" bson:"participantLanguage"`
	ParticipantVoiceGender string           `json:"participantVoiceGender" bson:"participantVoiceGender"`
	Active               bool               `json:"active" bson:"active"`
	LastActivity         primitive.DateTime `json:"lastActivity" bson:"lastActivity"`
	CreatedAt            primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
