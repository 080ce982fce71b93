// Package mongo implements the repositories on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kycdesk/kycdesk/internal/domain"
	"github.com/kycdesk/kycdesk/internal/repository"
)

const (
	usersCollection       = "users"
	submissionsCollection = "kyc_submissions"
	connectTimeout        = 10 * time.Second
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash []byte    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type submissionDoc struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"user"`
	DocumentPath string    `bson:"documentPath"`
	Status       string    `bson:"status"`
	SubmittedAt  time.Time `bson:"submittedAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type submissionWithOwnerDoc struct {
	submissionDoc `bson:",inline"`
	Owner         *userDoc `bson:"owner,omitempty"`
}

// Repository implements persistence interfaces on MongoDB.
type Repository struct {
	client      *mongo.Client
	users       *mongo.Collection
	submissions *mongo.Collection
}

var (
	_ repository.UserRepository       = (*Repository)(nil)
	_ repository.SubmissionRepository = (*Repository)(nil)
	_ repository.Store                = (*Repository)(nil)
)

// Connect dials uri, selects database and ensures the indexes the repository relies on.
func Connect(ctx context.Context, uri, database string) (*Repository, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	r := New(client, database)
	if err := r.EnsureIndexes(dialCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return r, nil
}

// New wraps an established client.
func New(client *mongo.Client, database string) *Repository {
	db := client.Database(database)
	return &Repository{
		client:      client,
		users:       db.Collection(usersCollection),
		submissions: db.Collection(submissionsCollection),
	}
}

// EnsureIndexes creates the unique and lookup indexes.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if _, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	if _, err := r.submissions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create submission indexes: %w", err)
	}
	return nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicate)
	}
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"email": email})
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findUser(ctx, bson.M{"_id": id})
}

// CountUsersByRole counts accounts holding role.
func (r *Repository) CountUsersByRole(ctx context.Context, role domain.Role) (int64, error) {
	return r.users.CountDocuments(ctx, bson.M{"role": string(role)})
}

// GetSubmissionByUser returns the submission owned by userID.
func (r *Repository) GetSubmissionByUser(ctx context.Context, userID string) (*domain.KYCSubmission, error) {
	return r.findSubmission(ctx, bson.M{"user": userID})
}

// GetSubmissionByID returns a submission by identifier.
func (r *Repository) GetSubmissionByID(ctx context.Context, id string) (*domain.KYCSubmission, error) {
	return r.findSubmission(ctx, bson.M{"_id": id})
}

// SubmitDocument upserts the user's submission, matching only a rejected record.
// When a non-rejected record exists the upsert collides with the unique user index.
func (r *Repository) SubmitDocument(ctx context.Context, sub *domain.KYCSubmission) (*domain.KYCSubmission, error) {
	filter := bson.M{"user": sub.UserID, "status": string(domain.KYCStatusRejected)}
	update := bson.M{
		"$set": bson.M{
			"documentPath": sub.DocumentPath,
			"status":       string(sub.Status),
			"submittedAt":  sub.SubmittedAt,
			"updatedAt":    sub.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": sub.ID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc submissionDoc
	err := r.submissions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("submit document for %s: %w", sub.UserID, repository.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

// UpdateSubmissionStatus sets the status of a submission.
func (r *Repository) UpdateSubmissionStatus(ctx context.Context, id string, status, onlyFrom domain.KYCStatus) (*domain.KYCSubmission, error) {
	filter := bson.M{"_id": id}
	if onlyFrom != "" {
		filter["status"] = string(onlyFrom)
	}
	update := bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()}}
	var doc submissionDoc
	err := r.submissions.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if onlyFrom == "" {
			return nil, repository.ErrNotFound
		}
		if _, lookupErr := r.GetSubmissionByID(ctx, id); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("update submission %s: %w", id, repository.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

// ListSubmissions returns every submission joined with its owner, newest first.
func (r *Repository) ListSubmissions(ctx context.Context) ([]domain.SubmissionWithUser, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "submittedAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$owner"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
	cur, err := r.submissions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.SubmissionWithUser
	for cur.Next(ctx) {
		var doc submissionWithOwnerDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		item := domain.SubmissionWithUser{KYCSubmission: doc.toDomain()}
		if doc.Owner != nil {
			item.Owner = domain.SubmissionOwner{ID: doc.Owner.ID, Name: doc.Owner.Name, Email: doc.Owner.Email}
		}
		out = append(out, item)
	}
	return out, cur.Err()
}

// CountSubmissions counts submissions, optionally filtered by status.
func (r *Repository) CountSubmissions(ctx context.Context, status domain.KYCStatus) (int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}
	return r.submissions.CountDocuments(ctx, filter)
}

// Ping verifies connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Repository) findUser(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &domain.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Role:         domain.Role(doc.Role),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (r *Repository) findSubmission(ctx context.Context, filter bson.M) (*domain.KYCSubmission, error) {
	var doc submissionDoc
	if err := r.submissions.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	out := doc.toDomain()
	return &out, nil
}

func (d submissionDoc) toDomain() domain.KYCSubmission {
	return domain.KYCSubmission{
		ID:           d.ID,
		UserID:       d.UserID,
		DocumentPath: d.DocumentPath,
		Status:       domain.KYCStatus(d.Status),
		SubmittedAt:  d.SubmittedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}
