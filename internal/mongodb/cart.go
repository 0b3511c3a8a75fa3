package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

type fieldSelectionDoc struct {
	FieldLabel string `bson:"field_label"`
	Value      string `bson:"value"`
}

type lineItemDoc struct {
	ID          string              `bson:"id"`
	ProductID   string              `bson:"product_id"`
	FieldValues []fieldSelectionDoc `bson:"field_values"`
	Quantity    int                 `bson:"quantity"`
	PriceCents  int64               `bson:"price_cents"`

	// Product is only written for order items.
	Product *productSnapshotDoc `bson:"product,omitempty"`
}

type cartDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	EcommerceID string             `bson:"ecommerce_id"`
	Status      string             `bson:"status"`
	UserID      string             `bson:"user_id,omitempty"`
	Items       []lineItemDoc      `bson:"items"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toItemDocs(items []domain.LineItem) []lineItemDoc {
	docs := make([]lineItemDoc, len(items))
	for i, li := range items {
		fields := make([]fieldSelectionDoc, len(li.FieldValues))
		for j, f := range li.FieldValues {
			fields[j] = fieldSelectionDoc{FieldLabel: f.FieldLabel, Value: f.Value}
		}
		docs[i] = lineItemDoc{
			ID:          li.ID,
			ProductID:   li.ProductID,
			FieldValues: fields,
			Quantity:    li.Quantity,
			PriceCents:  li.PriceCents,
		}
	}
	return docs
}

func fromItemDocs(docs []lineItemDoc) []domain.LineItem {
	items := make([]domain.LineItem, len(docs))
	for i, d := range docs {
		fields := make([]domain.FieldSelection, len(d.FieldValues))
		for j, f := range d.FieldValues {
			fields[j] = domain.FieldSelection{FieldLabel: f.FieldLabel, Value: f.Value}
		}
		items[i] = domain.LineItem{
			ID:          d.ID,
			ProductID:   d.ProductID,
			FieldValues: fields,
			Quantity:    d.Quantity,
			PriceCents:  d.PriceCents,
		}
		if d.Product != nil {
			items[i].Product = d.Product.toDomain()
		}
	}
	return items
}

func (d *cartDoc) toDomain() *domain.Cart {
	return &domain.Cart{
		ID:          d.ID.Hex(),
		EcommerceID: d.EcommerceID,
		Status:      d.Status,
		UserID:      d.UserID,
		Items:       fromItemDocs(d.Items),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func newCartDoc(c *domain.Cart) cartDoc {
	return cartDoc{
		EcommerceID: c.EcommerceID,
		Status:      c.Status,
		UserID:      c.UserID,
		Items:       toItemDocs(c.Items),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// CartRepository implements domain.CartRepository.
type CartRepository struct {
	collection *mongo.Collection
}

var _ domain.CartRepository = (*CartRepository)(nil)

// FindByID loads a cart within an ecommerce.
func (r *CartRepository) FindByID(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
	const op = "mongodb.cart.find"

	oid, err := objectID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}

	var doc cartDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": oid, "ecommerce_id": ecommerceID}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, domain.NotFound(op, "cart", cartID)
		}
		return nil, domain.Internal(err, op, "failed to get cart")
	}
	return doc.toDomain(), nil
}

// Create inserts a cart and sets its ID.
func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	const op = "mongodb.cart.create"

	doc := newCartDoc(cart)
	doc.ID = primitive.NewObjectID()
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return domain.Internal(err, op, "failed to create cart")
	}
	cart.ID = doc.ID.Hex()
	return nil
}

// Update replaces the cart's mutable fields.
func (r *CartRepository) Update(ctx context.Context, cart *domain.Cart) error {
	const op = "mongodb.cart.update"

	oid, err := objectID(op, "cart", cart.ID)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"status":     cart.Status,
		"user_id":    cart.UserID,
		"items":      toItemDocs(cart.Items),
		"updated_at": cart.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "ecommerce_id": cart.EcommerceID}, update)
	if err != nil {
		return domain.Internal(err, op, "failed to update cart")
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(op, "cart", cart.ID)
	}
	return nil
}

// Delete removes a cart.
func (r *CartRepository) Delete(ctx context.Context, ecommerceID, cartID string) error {
	const op = "mongodb.cart.delete"

	oid, err := objectID(op, "cart", cartID)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid, "ecommerce_id": ecommerceID})
	if err != nil {
		return domain.Internal(err, op, "failed to delete cart")
	}
	if res.DeletedCount == 0 {
		return domain.NotFound(op, "cart", cartID)
	}
	return nil
}
