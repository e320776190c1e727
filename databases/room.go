package databases

// go generate: mockery --name RoomDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linguacall/linguacall-api/models"
)

const roomName = "rooms"

// RoomDatabase contains the methods to use with the room database
type RoomDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Room, error)
	InsertOne(ctx context.Context, room models.Room, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
}

type roomDatabase struct {
	db DatabaseHelper
}

// NewRoomDatabase initializes a new instance of room database with the provided db connection
func NewRoomDatabase(db DatabaseHelper) RoomDatabase {
	return &roomDatabase{
		db: db,
	}
}

func (r *roomDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Room, error) {
	room := &models.Room{}
	err := r.db.Collection(roomName).FindOne(ctx, filter).Decode(&room)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *roomDatabase) InsertOne(ctx context.Context, room models.Room, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := r.db.Collection(roomName).InsertOne(ctx, room, opts...)
	return res, err
}

func (r *roomDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := r.db.Collection(roomName).UpdateOne(ctx, filter, update, opts...)
	return err
}

func (r *roomDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return r.db.Collection(roomName).DeleteMany(ctx, filter, opts...)
}
