package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const runsCollection = "runs"

// RunRecord is the diagnostics of one fit call during a training run:
// which subject pair was trained on, how many pairs the batch held and
// where the losses ended up.
type RunRecord struct {
	Time          time.Time `bson:"time"`
	SourceSubject int       `bson:"sourceSubject"`
	TargetSubject int       `bson:"targetSubject"`
	CrossSource   bool      `bson:"crossSource"`
	Pairs         int       `bson:"pairs"`
	TrainLoss     float64   `bson:"trainLoss"`
	ValidLoss     float64   `bson:"validLoss"`
}

// SaveRun appends one fit record to the runs collection.
func SaveRun(db *mongo.Database, ctx context.Context, record RunRecord) error {
	name := "runs_time"
	if err := ensureIndex(db, ctx, runsCollection, mongo.IndexModel{
		Keys:    bson.D{{Key: "time", Value: 1}},
		Options: options.Index().SetName(name),
	}); err != nil {
		return err
	}

	_, err := db.Collection(runsCollection).InsertOne(ctx, record)
	return err
}
