package databases

// go generate: mockery --name PendingVerificationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linguacall/linguacall-api/models"
)

const pendingVerificationName = "pendingVerifications"

// PendingVerificationDatabase contains the methods to use with the pending verification database
type PendingVerificationDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.PendingVerification, error)
	InsertOne(ctx context.Context, pv models.PendingVerification) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error)
}

type pendingVerificationDatabase struct {
	db DatabaseHelper
}

// NewPendingVerificationDatabase initializes a new instance of pending verification database with the provided db connection
func NewPendingVerificationDatabase(db DatabaseHelper) PendingVerificationDatabase {
	return &pendingVerificationDatabase{
		db: db,
	}
}

func (p *pendingVerificationDatabase) FindOne(ctx context.Context, filter interface{}) (*models.PendingVerification, error) {
	pv := &models.PendingVerification{}
	err := p.db.Collection(pendingVerificationName).FindOne(ctx, filter).Decode(&pv)
	if err != nil {
		return nil, err
	}
	return pv, nil
}

func (p *pendingVerificationDatabase) InsertOne(ctx context.Context, pv models.PendingVerification) (InsertOneResultHelper, error) {
	res, err := p.db.Collection(pendingVerificationName).InsertOne(ctx, pv)
	return res, err
}

func (p *pendingVerificationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	_, err := p.db.Collection(pendingVerificationName).UpdateOne(ctx, filter, update, opts...)
	return err
}

func (p *pendingVerificationDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return p.db.Collection(pendingVerificationName).DeleteOne(ctx, filter, opts...)
}

func (p *pendingVerificationDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return p.db.Collection(pendingVerificationName).DeleteMany(ctx, filter, opts...)
}
