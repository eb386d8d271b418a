package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens the database named by MONGO_URL, defaulting to a
// local mrainet database.
func ConnectMongo() (*mongo.Database, error) {
	registry := bson.NewRegistry()
	registry.RegisterTypeMapEntry(0x03, reflect.TypeOf(bson.M{}))

	mongoUrl := os.Getenv("MONGO_URL")
	if mongoUrl == "" {
		mongoUrl = "mongodb://localhost:27017/mrainet"
	}

	uri, err := url.Parse(mongoUrl)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoUrl).SetRegistry(registry))
	if err != nil {
		return nil, err
	}

	dbName := strings.Trim(uri.Path, "/")
	if dbName == "" {
		dbName = "mrainet"
	}
	return client.Database(dbName), nil
}

// ensureIndex creates the named index unless it already exists.
func ensureIndex(db *mongo.Database, ctx context.Context, collectionName string, model mongo.IndexModel) error {
	if model.Options.Name == nil {
		return fmt.Errorf("must provide a name for index")
	}
	expectedName := *model.Options.Name

	idxs := db.Collection(collectionName).Indexes()
	cur, err := idxs.List(ctx)
	if err != nil {
		return fmt.Errorf("unable to list indexes: %s", err)
	}

	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return fmt.Errorf("unable to decode bson index document: %s", err)
		}
		if v := d["name"]; v != nil && v.(string) == expectedName {
			return nil
		}
	}

	_, err = idxs.CreateOne(ctx, model)
	return err
}
