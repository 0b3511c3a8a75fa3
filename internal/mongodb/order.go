package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

type pixDoc struct {
	QRCodeImage   string `bson:"qr_code_image"`
	CopyPasteCode string `bson:"copy_paste_code"`
}

type cardDoc struct {
	ClientSecret string `bson:"client_secret"`
}

type paymentDoc struct {
	Method            string   `bson:"method"`
	GatewayPaymentID  string   `bson:"gateway_payment_id"`
	GatewayCustomerID string   `bson:"gateway_customer_id"`
	AmountCents       int64    `bson:"amount_cents"`
	DueDate           string   `bson:"due_date,omitempty"`
	Pix               *pixDoc  `bson:"pix,omitempty"`
	Card              *cardDoc `bson:"card,omitempty"`
}

// productSnapshotDoc is the product as it was at checkout. Orders keep it so
// later catalog edits never change what was bought.
type productSnapshotDoc struct {
	ID          string            `bson:"id"`
	EcommerceID string            `bson:"ecommerce_id"`
	ProductType string            `bson:"product_type"`
	Name        string            `bson:"name"`
	Description string            `bson:"description"`
	Images      []string          `bson:"images"`
	PriceCents  int64             `bson:"price_cents"`
	Fields      []productFieldDoc `bson:"fields"`
}

// toOrderItemDocs keeps each item's product snapshot, which cart documents omit.
func toOrderItemDocs(items []domain.LineItem) []lineItemDoc {
	docs := toItemDocs(items)
	for i, li := range items {
		p := li.Product
		if p == nil {
			continue
		}
		fields := make([]productFieldDoc, len(p.Fields))
		for j, f := range p.Fields {
			fields[j] = productFieldDoc{Label: f.Label, Type: f.Type, Options: f.Options}
		}
		docs[i].Product = &productSnapshotDoc{
			ID:          p.ID,
			EcommerceID: p.EcommerceID,
			ProductType: p.ProductType,
			Name:        p.Name,
			Description: p.Description,
			Images:      p.Images,
			PriceCents:  p.PriceCents,
			Fields:      fields,
		}
	}
	return docs
}

func (d *productSnapshotDoc) toDomain() *domain.Product {
	fields := make([]domain.ProductField, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = domain.ProductField{Label: f.Label, Type: f.Type, Options: f.Options}
	}
	return &domain.Product{
		ID:          d.ID,
		EcommerceID: d.EcommerceID,
		ProductType: d.ProductType,
		Name:        d.Name,
		Description: d.Description,
		Images:      d.Images,
		PriceCents:  d.PriceCents,
		Fields:      fields,
	}
}

type orderDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	EcommerceID string             `bson:"ecommerce_id"`
	UserID      string             `bson:"user_id"`
	Status      string             `bson:"status"`
	Payment     paymentDoc         `bson:"payment"`
	Items       []lineItemDoc      `bson:"items"`
	TotalCents  int64              `bson:"total_cents"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func toPaymentDoc(p domain.PaymentData) paymentDoc {
	doc := paymentDoc{
		Method:            string(p.Method),
		GatewayPaymentID:  p.GatewayPaymentID,
		GatewayCustomerID: p.GatewayCustomerID,
		AmountCents:       p.AmountCents,
		DueDate:           p.DueDate,
	}
	if p.Pix != nil {
		doc.Pix = &pixDoc{QRCodeImage: p.Pix.QRCodeImage, CopyPasteCode: p.Pix.CopyPasteCode}
	}
	if p.Card != nil {
		doc.Card = &cardDoc{ClientSecret: p.Card.ClientSecret}
	}
	return doc
}

func (d paymentDoc) toDomain() domain.PaymentData {
	p := domain.PaymentData{
		Method:            domain.PaymentMethod(d.Method),
		GatewayPaymentID:  d.GatewayPaymentID,
		GatewayCustomerID: d.GatewayCustomerID,
		AmountCents:       d.AmountCents,
		DueDate:           d.DueDate,
	}
	if d.Pix != nil {
		p.Pix = &domain.PixData{QRCodeImage: d.Pix.QRCodeImage, CopyPasteCode: d.Pix.CopyPasteCode}
	}
	if d.Card != nil {
		p.Card = &domain.CardData{ClientSecret: d.Card.ClientSecret}
	}
	return p
}

func (d *orderDoc) toDomain() domain.Order {
	return domain.Order{
		ID:          d.ID.Hex(),
		EcommerceID: d.EcommerceID,
		UserID:      d.UserID,
		Status:      domain.OrderStatus(d.Status),
		Payment:     d.Payment.toDomain(),
		Items:       fromItemDocs(d.Items),
		TotalCents:  d.TotalCents,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// OrderRepository implements domain.OrderRepository.
type OrderRepository struct {
	collection *mongo.Collection
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// FindByID loads an order within an ecommerce.
func (r *OrderRepository) FindByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error) {
	const op = "mongodb.order.find"

	oid, err := objectID(op, "order", orderID)
	if err != nil {
		return nil, err
	}

	var doc orderDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": oid, "ecommerce_id": ecommerceID}).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, domain.NotFound(op, "order", orderID)
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}
	o := doc.toDomain()
	return &o, nil
}

// FindByUser lists a user's orders, newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, "mongodb.order.find_by_user", bson.M{"ecommerce_id": ecommerceID, "user_id": userID}, opts)
}

// FindByStatus lists orders in a status across tenants, oldest first.
func (r *OrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, "mongodb.order.find_by_status", bson.M{"status": string(status)}, opts)
}

func (r *OrderRepository) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]domain.Order, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	defer cursor.Close(ctx)

	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.Internal(err, op, "failed to decode orders")
	}

	orders := make([]domain.Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].toDomain()
	}
	return orders, nil
}

// Create inserts an order and sets its ID.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	const op = "mongodb.order.create"

	doc := orderDoc{
		ID:          primitive.NewObjectID(),
		EcommerceID: order.EcommerceID,
		UserID:      order.UserID,
		Status:      string(order.Status),
		Payment:     toPaymentDoc(order.Payment),
		Items:       toOrderItemDocs(order.Items),
		TotalCents:  order.TotalCents,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return domain.Internal(err, op, "failed to create order")
	}
	order.ID = doc.ID.Hex()
	return nil
}

// Update writes the order's status and payment data. Items are immutable.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	const op = "mongodb.order.update"

	oid, err := objectID(op, "order", order.ID)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"status":     string(order.Status),
		"payment":    toPaymentDoc(order.Payment),
		"updated_at": order.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid, "ecommerce_id": order.EcommerceID}, update)
	if err != nil {
		return domain.Internal(err, op, "failed to update order")
	}
	if res.MatchedCount == 0 {
		return domain.NotFound(op, "order", order.ID)
	}
	return nil
}

// UpdateStatusIf implements domain.OrderRepository with a filter on the
// current status, so the write and the check are one operation.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	const op = "mongodb.order.update_status_if"

	oid, err := objectID(op, "order", order.ID)
	if err != nil {
		return false, err
	}

	filter := bson.M{"_id": oid, "ecommerce_id": order.EcommerceID, "status": string(from)}
	update := bson.M{"$set": bson.M{
		"status":     string(order.Status),
		"updated_at": order.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, domain.Internal(err, op, "failed to update order status")
	}
	return res.MatchedCount == 1, nil
}
