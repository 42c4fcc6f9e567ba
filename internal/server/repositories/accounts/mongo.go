package accounts

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dzaytsev/credkeeper/internal/common"
	"github.com/dzaytsev/credkeeper/internal/server/models"
)

// accountDoc is the wire shape of an account document. The hash is stored
// under "password" for compatibility with pre-existing collections.
type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password"`
	Role         string             `bson:"role"`
}

func (d *accountDoc) toModel() *models.Account {
	return &models.Account{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

// EnsureIndexes creates the unique index on username. The index, not the
// application-level pre-check, is the authoritative guard against duplicate
// registrations.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure username index: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	doc := &accountDoc{}
	err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("find by username: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	doc := &accountDoc{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) List(ctx context.Context) ([]*models.Account, error) {
	cur, err := r.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]*models.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, docs[i].toModel())
	}
	return accounts, nil
}

func (r *MongoRepository) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	doc := &accountDoc{
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		Role:         account.Role,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert account: unexpected id type %T", res.InsertedID)
	}

	out := *account
	out.ID = oid.Hex()
	return &out, nil
}

func (r *MongoRepository) UpdateByID(ctx context.Context, id string, fields UpdateFields) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	set := updateDoc(fields)
	if len(set) == 0 {
		return nil
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func updateDoc(fields UpdateFields) bson.M {
	set := bson.M{}
	if fields.Username != nil {
		set["username"] = *fields.Username
	}
	if fields.Role != nil {
		set["role"] = *fields.Role
	}
	if fields.PasswordHash != nil {
		set["password"] = *fields.PasswordHash
	}
	return set
}
