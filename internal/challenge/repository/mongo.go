package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"daily-trivia/internal/challenge/domain"
)

// CollectionName is the MongoDB collection holding one document per challenge date.
const CollectionName = "challenges"

// challengeDoc is the stored document shape. Content is either a string or a subdocument of language → string.
type challengeDoc struct {
	Date         string    `bson:"date"`
	Answer       string    `bson:"answer"`
	Alternatives []string  `bson:"alternatives"`
	Facts        []factDoc `bson:"facts"`
	Category     string    `bson:"category"`
}

type factDoc struct {
	FactType string        `bson:"factType"`
	Content  bson.RawValue `bson:"content"`
}

// MongoRepository implements Repository on a MongoDB collection.
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoRepository returns a challenge repository backed by database.challenges on client.
func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return &MongoRepository{client: client, coll: client.Database(database).Collection(CollectionName)}
}

// ConnectMongo dials uri and verifies the primary is reachable. Caller must Disconnect when done.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique index on date that guarantees one challenge per day.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("date_unique"),
	})
	return err
}

// GetByDate returns the challenge for date, or nil if not found. _id is excluded from the projection.
func (r *MongoRepository) GetByDate(ctx context.Context, date string) (*domain.Challenge, error) {
	var doc challengeDoc
	err := r.coll.FindOne(ctx, bson.M{"date": date}, options.FindOne().SetProjection(bson.M{"_id": 0})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return docToDomain(&doc)
}

// Upsert replaces the document for c.Date, inserting it if absent.
func (r *MongoRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	if c == nil || c.Date == "" {
		return errors.New("challenge date is required")
	}
	doc, err := domainToDoc(c)
	if err != nil {
		return err
	}
	_, err = r.coll.ReplaceOne(ctx, bson.M{"date": c.Date}, doc, options.Replace().SetUpsert(true))
	return err
}

// PingContext reports whether the MongoDB primary is reachable. Used by health checks.
func (r *MongoRepository) PingContext(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func docToDomain(doc *challengeDoc) (*domain.Challenge, error) {
	c := &domain.Challenge{
		Date:         doc.Date,
		Answer:       doc.Answer,
		Alternatives: doc.Alternatives,
		Category:     doc.Category,
		Facts:        make([]domain.Fact, len(doc.Facts)),
	}
	for i, f := range doc.Facts {
		content, err := decodeContent(f.Content)
		if err != nil {
			return nil, fmt.Errorf("challenge %s fact %d: %w", doc.Date, i, err)
		}
		c.Facts[i] = domain.Fact{FactType: f.FactType, Content: content}
	}
	return c, nil
}

func decodeContent(v bson.RawValue) (domain.Content, error) {
	switch v.Type {
	case bson.TypeString:
		return domain.Text(v.StringValue()), nil
	case bson.TypeEmbeddedDocument:
		var m map[string]string
		if err := v.Unmarshal(&m); err != nil {
			return domain.Content{}, err
		}
		return domain.Localized(m), nil
	case bson.TypeNull, 0:
		return domain.Content{}, domain.ErrEmptyContent
	default:
		return domain.Content{}, fmt.Errorf("content: unsupported bson type %s", v.Type)
	}
}

func domainToDoc(c *domain.Challenge) (*challengeDoc, error) {
	doc := &challengeDoc{
		Date:         c.Date,
		Answer:       c.Answer,
		Alternatives: c.Alternatives,
		Category:     c.Category,
		Facts:        make([]factDoc, len(c.Facts)),
	}
	if doc.Alternatives == nil {
		doc.Alternatives = []string{}
	}
	for i, f := range c.Facts {
		var content any
		if f.Content.IsText() {
			content = f.Content.Resolve("")
		} else {
			m := f.Content.Entries()
			if m == nil {
				m = map[string]string{}
			}
			content = m
		}
		t, data, err := bson.MarshalValue(content)
		if err != nil {
			return nil, err
		}
		doc.Facts[i] = factDoc{FactType: f.FactType, Content: bson.RawValue{Type: t, Value: data}}
	}
	return doc, nil
}
