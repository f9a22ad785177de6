package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"xpost-studio/internal/domain"
	"xpost-studio/internal/infra/metrics"
)

var _ domain.DocumentStore = (*Mongo)(nil)

// Mongo хранит каждую коллекцию в одноимённой коллекции MongoDB, id документа хранится в _id.
type Mongo struct {
	db *mongo.Database
}

// NewMongo создаёт адаптер MongoDB.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db}
}

func (m *Mongo) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт индексы по полям, по которым идут выборки.
func (m *Mongo) EnsureSchema(ctx context.Context) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	indexes := map[string][]string{
		domain.CollectionPosts:    {"userId", "threadId"},
		domain.CollectionProfiles: {"userEmail", "userId"},
	}
	for collection, keys := range indexes {
		models := make([]mongo.IndexModel, 0, len(keys))
		for _, key := range keys {
			models = append(models, mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}})
		}
		if _, err := m.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return domain.Remote("create indexes", err)
		}
	}
	return nil
}

// CreateDocument вставляет документ. Пустой id заменяется на uuid.
func (m *Mongo) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	doc := toBSON(id, fields)

	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	metrics.ObserveNetworkRequest("mongo", "document_create", collection, start, err)
	if err != nil {
		return domain.Document{}, mongoError("create document", err)
	}
	return fromBSON(doc), nil
}

// GetDocument возвращает документ по id.
func (m *Mongo) GetDocument(ctx context.Context, collection, id string) (domain.Document, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var doc bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	metrics.ObserveNetworkRequest("mongo", "document_get", collection, start, err)
	if err != nil {
		return domain.Document{}, mongoError("get document", err)
	}
	return fromBSON(doc), nil
}

// ListDocuments возвращает документы коллекции, подходящие под все фильтры.
func (m *Mongo) ListDocuments(ctx context.Context, collection string, filters ...domain.Filter) ([]domain.Document, error) {
	query := filterQuery(filters)

	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	start := time.Now()
	cursor, err := m.db.Collection(collection).Find(ctx, query, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
	if err != nil {
		metrics.ObserveNetworkRequest("mongo", "document_list", collection, start, err)
		return nil, domain.Remote("list documents", err)
	}
	var raw []bson.M
	err = cursor.All(ctx, &raw)
	metrics.ObserveNetworkRequest("mongo", "document_list", collection, start, err)
	if err != nil {
		return nil, domain.Remote("list documents", err)
	}
	docs := make([]domain.Document, 0, len(raw))
	for _, doc := range raw {
		docs = append(docs, fromBSON(doc))
	}
	return docs, nil
}

// UpdateDocument выставляет fields и возвращает документ после изменения.
func (m *Mongo) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (domain.Document, error) {
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}

	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	start := time.Now()
	var doc bson.M
	err := m.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	metrics.ObserveNetworkRequest("mongo", "document_update", collection, start, err)
	if err != nil {
		return domain.Document{}, mongoError("update document", err)
	}
	return fromBSON(doc), nil
}

// DeleteDocument удаляет документ. Для отсутствующего документа возвращает ErrNotFound.
func (m *Mongo) DeleteDocument(ctx context.Context, collection, id string) error {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	metrics.ObserveNetworkRequest("mongo", "document_delete", collection, start, err)
	if err != nil {
		return mongoError("delete document", err)
	}
	return affected("delete document", res.DeletedCount)
}

// CountByCollection возвращает число документов в коллекциях сервиса.
func (m *Mongo) CountByCollection(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := m.connCtx(ctx)
	defer cancel()
	counts := make(map[string]int64)
	for _, collection := range []string{domain.CollectionPosts, domain.CollectionProfiles, domain.CollectionAccounts} {
		n, err := m.db.Collection(collection).CountDocuments(ctx, bson.M{})
		if err != nil {
			return nil, domain.Remote("count documents", err)
		}
		if n > 0 {
			counts[collection] = n
		}
	}
	return counts, nil
}

// mongoError переводит ошибку драйвера в ошибку хранилища.
func mongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.Remote(op, domain.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return domain.Remote(op, domain.ErrConflict)
	default:
		return domain.Remote(op, err)
	}
}

func filterQuery(filters []domain.Filter) bson.D {
	query := bson.D{}
	for _, f := range filters {
		query = append(query, bson.E{Key: f.Field, Value: f.Value})
	}
	return query
}

func toBSON(id string, fields map[string]any) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		doc[k] = v
	}
	return doc
}

func fromBSON(doc bson.M) domain.Document {
	id, _ := doc["_id"].(string)
	fields := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			continue
		}
		fields[k] = v
	}
	return domain.Document{ID: id, Fields: fields}
}
