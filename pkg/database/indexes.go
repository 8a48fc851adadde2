package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"guidedesk/pkg/logger"
)

// Collections names the two collections the live queries read.
type Collections struct {
	Requests  string
	SOSAlerts string
}

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

// EnsureIndexes creates the indexes the live queries and status writes rely
// on. Creating an index that already exists is a no-op, so it runs on every
// start.
func EnsureIndexes(ctx context.Context, db *mongo.Database, c Collections, log *logger.Logger) error {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithField("component", "indexes")

	for _, ci := range indexPlan(c) {
		names, err := db.Collection(ci.collection).Indexes().CreateMany(ctx, ci.models)
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", ci.collection, err)
		}
		log.WithFields(map[string]interface{}{
			"collection": ci.collection,
			"indexes":    names,
		}).Info("Indexes ensured")
	}
	return nil
}

func indexPlan(c Collections) []collectionIndexes {
	return []collectionIndexes{
		{collection: c.Requests, models: statusIndexes("guideId")},
		{collection: c.SOSAlerts, models: statusIndexes("respondingGuideId")},
	}
}

// statusIndexes backs the status filter and createdAt sort every live query
// runs, plus a lookup by assigned guide.
func statusIndexes(guideField string) []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("status_createdAt"),
		},
		{
			Keys:    bson.D{{Key: guideField, Value: 1}},
			Options: options.Index().SetName(guideField + "_1").SetSparse(true),
		},
	}
}
