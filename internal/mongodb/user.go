package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

type addressDoc struct {
	Street       string `bson:"street,omitempty"`
	Number       string `bson:"number,omitempty"`
	Complement   string `bson:"complement,omitempty"`
	Neighborhood string `bson:"neighborhood,omitempty"`
	City         string `bson:"city,omitempty"`
	State        string `bson:"state,omitempty"`
	PostalCode   string `bson:"postal_code,omitempty"`
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	WhitelabelID string             `bson:"whitelabel_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	TaxID        string             `bson:"cpf"`
	Phone        string             `bson:"phone"`
	Address      addressDoc         `bson:"address"`
}

// UserRepository implements domain.UserRepository.
type UserRepository struct {
	collection *mongo.Collection
}

var _ domain.UserRepository = (*UserRepository)(nil)

// FindByID loads a user.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	const op = "mongodb.user.find"

	oid, err := objectID(op, "user", userID)
	if err != nil {
		return nil, err
	}

	var doc userDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.NotFound(op, "user", userID)
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}

	a := doc.Address
	return &domain.User{
		ID:           doc.ID.Hex(),
		WhitelabelID: doc.WhitelabelID,
		Name:         doc.Name,
		Email:        doc.Email,
		TaxID:        doc.TaxID,
		Phone:        doc.Phone,
		Address: domain.Address{
			Street:       a.Street,
			Number:       a.Number,
			Complement:   a.Complement,
			Neighborhood: a.Neighborhood,
			City:         a.City,
			State:        a.State,
			PostalCode:   a.PostalCode,
		},
	}, nil
}

// Insert stores a user. Used for seeding and tests.
func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		WhitelabelID: u.WhitelabelID,
		Name:         u.Name,
		Email:        u.Email,
		TaxID:        u.TaxID,
		Phone:        u.Phone,
		Address: addressDoc{
			Street:       u.Address.Street,
			Number:       u.Address.Number,
			Complement:   u.Address.Complement,
			Neighborhood: u.Address.Neighborhood,
			City:         u.Address.City,
			State:        u.Address.State,
			PostalCode:   u.Address.PostalCode,
		},
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return domain.Internal(err, "mongodb.user.insert", "failed to insert user")
	}
	u.ID = doc.ID.Hex()
	return nil
}
