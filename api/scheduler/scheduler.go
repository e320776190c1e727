package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linguacall/linguacall-api/databases"
)

// Retention windows for the janitor jobs. Transcript data is never
// persisted; these only cover the room documents and auth plumbing.
const (
	roomRetention         = 24 * time.Hour
	tokenRetention        = 24 * time.Hour
	verificationRetention = 24 * time.Hour
)

// Scheduler handles periodic background cleanup: dead rooms, expired
// websocket tokens and stale email-verification codes.
type Scheduler struct {
	cron *cron.Cron
	RDB  databases.RoomDatabase
	TDB  databases.TokenDatabase
	PVDB databases.PendingVerificationDatabase
}

// New creates a new scheduler instance
func New(rdb databases.RoomDatabase, tdb databases.TokenDatabase, pvdb databases.PendingVerificationDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		RDB:  rdb,
		TDB:  tdb,
		PVDB: pvdb,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Reap inactive rooms hourly
	_, err := s.cron.AddFunc("@every 1h", s.reapRooms)
	if err != nil {
		zap.S().Errorw("failed to register room janitor job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 1h", s.reapTokens)
	if err != nil {
		zap.S().Errorw("failed to register token janitor job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 1h", s.reapPendingVerifications)
	if err != nil {
		zap.S().Errorw("failed to register verification janitor job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("janitor scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("janitor scheduler stopped")
}

// reapRooms hard-deletes rooms whose activity timestamp is past the
// retention window. Soft-deleted (inactive) rooms age out the same way.
func (s *Scheduler) reapRooms() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-roomRetention)
	deleted, err := s.RDB.DeleteMany(ctx, bson.M{
		"lastActivity": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	})
	if err != nil {
		zap.S().Errorw("failed to reap inactive rooms", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("reaped inactive rooms", "count", deleted)
	}
}

func (s *Scheduler) reapTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-tokenRetention)
	deleted, err := s.TDB.DeleteMany(ctx, bson.M{
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to reap expired tokens", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("reaped expired tokens", "count", deleted)
	}
}

func (s *Scheduler) reapPendingVerifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-verificationRetention)
	deleted, err := s.PVDB.DeleteMany(ctx, bson.M{
		"createdAt": bson.M{"$lt": primitive.NewDateTimeFromTime(cutoff)},
	})
	if err != nil {
		zap.S().Errorw("failed to reap stale verifications", "error", err)
		return
	}
	if deleted > 0 {
		zap.S().Infow("reaped stale verifications", "count", deleted)
	}
}
