package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/linguacall/linguacall-api/api"
	"github.com/linguacall/linguacall-api/config"
	"github.com/linguacall/linguacall-api/databases"
	"github.com/linguacall/linguacall-api/models"
)

// roomCodeAttempts bounds the collision-retry loop when minting a room code.
const roomCodeAttempts = 10

// Room exported for testing purposes
type Room struct {
	DB  databases.RoomDatabase
	UDB databases.UserDatabase
}

type createRoomRequest struct {
	CreatorID   string `json:"creatorId"`
	Language    string `json:"language"`
	VoiceGender string `json:"voiceGender"`
}

// CreateRoomHandler mints a new room with a short shareable code. The code
// is what the creator reads out or texts to the other party, so it stays
// short rather than a full uuid.
func (rm Room) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.CreatorID == "" || req.Language == "" || req.VoiceGender == "" {
		config.ErrorStatus("creatorId, language and voiceGender are required", http.StatusBadRequest, w,
			fmt.Errorf("missing required fields"))
		return
	}

	uID, err := primitive.ObjectIDFromHex(req.CreatorID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	creator, err := rm.UDB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	if creator.Details.Credits <= 0 {
		config.ErrorStatus("insufficient credits", http.StatusPaymentRequired, w,
			fmt.Errorf("user %s has no credits", req.CreatorID))
		return
	}

	room := models.Room{
		CreatorID:          req.CreatorID,
		CreatorLanguage:    req.Language,
		CreatorVoiceGender: req.VoiceGender,
		Active:             true,
		LastActivity:       primitive.NewDateTimeFromTime(time.Now()),
		CreatedAt:          primitive.NewDateTimeFromTime(time.Now()),
	}

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room.ID = newRoomCode()
		existing, err := rm.DB.FindOne(ctx, bson.M{"_id": room.ID})
		if err != nil && err != mongo.ErrNoDocuments {
			config.ErrorStatus("failed to check room code", http.StatusInternalServerError, w, err)
			return
		}
		if existing != nil {
			continue
		}
		if _, err := rm.DB.InsertOne(ctx, room); err != nil {
			config.ErrorStatus("failed to insert room", http.StatusInternalServerError, w, err)
			return
		}

		zap.S().Infow("room created", "roomId", room.ID, "creatorId", req.CreatorID)

		b, err := json.Marshal(room)
		if err != nil {
			config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(b)
		return
	}

	config.ErrorStatus("failed to mint a unique room code", http.StatusInternalServerError, w,
		fmt.Errorf("exhausted %d attempts", roomCodeAttempts))
}

// RoomHandler returns a room given a roomID
func (rm Room) RoomHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	roomID := mux.Vars(r)["room_id"]

	zap.S().Debugf("room_id: %v", roomID)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := rm.DB.FindOne(ctx, bson.M{"_id": roomID})
	if err != nil {
		config.ErrorStatus("failed to get room by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// newRoomCode returns an 8-hex-char shareable room code.
func newRoomCode() string {
	return strings.Split(uuid.New().String(), "-")[0]
}
