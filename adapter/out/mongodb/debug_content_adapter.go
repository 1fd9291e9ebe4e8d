// Package mongodb stores opt-in debug email content outside the relational
// log, with automatic expiry.
package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pretzelai/email-use/core/domain"
	"github.com/pretzelai/email-use/core/port/out"
)

const (
	collectionDebugContent = "debug_contents"

	// Retention for opted-in raw content. Content is a debugging aid, not an
	// archive; it expires on its own.
	defaultTTLDays = 30
)

// DebugContentAdapter implements out.DebugContentRepository using MongoDB.
type DebugContentAdapter struct {
	collection *mongo.Collection
	ttlDays    int
}

// NewDebugContentAdapter creates a new DebugContentAdapter.
func NewDebugContentAdapter(db *mongo.Database) *DebugContentAdapter {
	return &DebugContentAdapter{
		collection: db.Collection(collectionDebugContent),
		ttlDays:    defaultTTLDays,
	}
}

// EnsureIndexes creates the collection indexes, including the TTL expiry.
func (a *DebugContentAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "log_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

type debugContentDocument struct {
	LogID      string    `bson:"log_id"`
	UserID     string    `bson:"user_id"`
	MessageID  string    `bson:"message_id"`
	Subject    string    `bson:"subject"`
	From       string    `bson:"from"`
	Snippet    string    `bson:"snippet"`
	Body       string    `bson:"body"`
	AIResponse string    `bson:"ai_response"`
	SavedAt    time.Time `bson:"saved_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

// Save upserts the raw content for one log entry.
func (a *DebugContentAdapter) Save(ctx context.Context, userID string, logID uuid.UUID, email *domain.EmailMessage, aiResponse string) error {
	now := time.Now()
	doc := debugContentDocument{
		LogID:      logID.String(),
		UserID:     userID,
		MessageID:  email.ID,
		Subject:    email.Subject,
		From:       email.From,
		Snippet:    email.Snippet,
		Body:       email.Body,
		AIResponse: aiResponse,
		SavedAt:    now,
		ExpiresAt:  now.AddDate(0, 0, a.ttlDays),
	}

	_, err := a.collection.UpdateOne(ctx,
		bson.M{"log_id": doc.LogID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	return err
}

// Get returns the stored content for a log entry.
func (a *DebugContentAdapter) Get(ctx context.Context, logID uuid.UUID) (*domain.EmailMessage, string, error) {
	var doc debugContentDocument
	err := a.collection.FindOne(ctx, bson.M{"log_id": logID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", err
	}

	return &domain.EmailMessage{
		ID:      doc.MessageID,
		Subject: doc.Subject,
		From:    doc.From,
		Snippet: doc.Snippet,
		Body:    doc.Body,
	}, doc.AIResponse, nil
}

// DeleteForUser removes a user's debug content alongside a log clear.
func (a *DebugContentAdapter) DeleteForUser(ctx context.Context, userID string) error {
	_, err := a.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

var _ out.DebugContentRepository = (*DebugContentAdapter)(nil)
