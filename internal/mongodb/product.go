package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

type productFieldDoc struct {
	Label   string   `bson:"label"`
	Type    string   `bson:"type"`
	Options []string `bson:"options,omitempty"`
}

type productDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	EcommerceID string             `bson:"ecommerce_id"`
	ProductType string             `bson:"product_type"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	Images      []string           `bson:"images"`
	PriceCents  int64              `bson:"price_cents"`
	Fields      []productFieldDoc  `bson:"fields"`
}

func (d *productDoc) toDomain() *domain.Product {
	fields := make([]domain.ProductField, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = domain.ProductField{Label: f.Label, Type: f.Type, Options: f.Options}
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		EcommerceID: d.EcommerceID,
		ProductType: d.ProductType,
		Name:        d.Name,
		Description: d.Description,
		Images:      d.Images,
		PriceCents:  d.PriceCents,
		Fields:      fields,
	}
}

// ProductRepository implements domain.ProductRepository.
type ProductRepository struct {
	collection *mongo.Collection
}

var _ domain.ProductRepository = (*ProductRepository)(nil)

// FindByID loads a product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	const op = "mongodb.product.find"

	oid, err := objectID(op, "product", productID)
	if err != nil {
		return nil, err
	}

	var doc productDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, domain.NotFound(op, "product", productID)
		}
		return nil, domain.Internal(err, op, "failed to get product")
	}
	return doc.toDomain(), nil
}

// FindByIDs loads the products that exist among ids in one query.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	const op = "mongodb.product.find_many"

	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]*domain.Product, len(oids))
	if len(oids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list products")
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, domain.Internal(err, op, "failed to decode product")
		}
		p := doc.toDomain()
		out[p.ID] = p
	}
	if err := cursor.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate products")
	}
	return out, nil
}

// Insert stores a product. Products are owned by the admin service; this is
// used for seeding and tests.
func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	fields := make([]productFieldDoc, len(p.Fields))
	for i, f := range p.Fields {
		fields[i] = productFieldDoc{Label: f.Label, Type: f.Type, Options: f.Options}
	}
	doc := productDoc{
		ID:          primitive.NewObjectID(),
		EcommerceID: p.EcommerceID,
		ProductType: p.ProductType,
		Name:        p.Name,
		Description: p.Description,
		Images:      p.Images,
		PriceCents:  p.PriceCents,
		Fields:      fields,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return domain.Internal(err, "mongodb.product.insert", "failed to insert product")
	}
	p.ID = doc.ID.Hex()
	return nil
}
