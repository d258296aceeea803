package internal

import (
	"context"
	"fmt"
	"log"
	"ocpinode/internal/config"
	"ocpinode/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionLog     = "sys_log"
	collectionParties = "remote_parties"
	collectionObjects = "sync_objects"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client, nil
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	err := connection.Disconnect(m.ctx)
	if err != nil {
		log.Println("mongodb disconnect error;", err)
	}
}

func (m *MongoDB) WriteLogMessage(data Data) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionLog)
	_, err = collection.InsertOne(m.ctx, data)
	if err != nil {
		return err
	}
	return nil
}

func (m *MongoDB) ReadLog() (interface{}, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var logMessages []FeatureLogMessage
	collection := connection.Database(m.database).Collection(collectionLog)
	filter := bson.D{}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(1000)
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if err = cursor.All(m.ctx, &logMessages); err != nil {
		return nil, err
	}
	return logMessages, nil
}

func (m *MongoDB) SaveParty(party *models.RemoteParty) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionParties)
	filter := bson.D{{Key: "id", Value: party.Id}}
	opts := options.Replace().SetUpsert(true)
	_, err = collection.ReplaceOne(m.ctx, filter, party, opts)
	return err
}

func (m *MongoDB) DeleteParty(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionParties)
	_, err = collection.DeleteOne(m.ctx, bson.D{{Key: "id", Value: id}})
	return err
}

func (m *MongoDB) GetParties() ([]*models.RemoteParty, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var parties []*models.RemoteParty
	collection := connection.Database(m.database).Collection(collectionParties)
	cursor, err := collection.Find(m.ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	if err = cursor.All(m.ctx, &parties); err != nil {
		return nil, err
	}
	return parties, nil
}

func objectFilter(obj *models.SyncObject) bson.D {
	return bson.D{
		{Key: "type", Value: obj.Type},
		{Key: "country_code", Value: obj.CountryCode},
		{Key: "party_id", Value: obj.PartyId},
		{Key: "key", Value: obj.Key},
	}
}

func (m *MongoDB) SaveObject(obj *models.SyncObject) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionObjects)
	opts := options.Replace().SetUpsert(true)
	_, err = collection.ReplaceOne(m.ctx, objectFilter(obj), obj, opts)
	return err
}

func (m *MongoDB) DeleteObject(obj *models.SyncObject) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)
	collection := connection.Database(m.database).Collection(collectionObjects)
	_, err = collection.DeleteOne(m.ctx, objectFilter(obj))
	return err
}

func (m *MongoDB) GetObjects() ([]*models.SyncObject, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var objects []*models.SyncObject
	collection := connection.Database(m.database).Collection(collectionObjects)
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: 1}})
	cursor, err := collection.Find(m.ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	if err = cursor.All(m.ctx, &objects); err != nil {
		return nil, err
	}
	return objects, nil
}
