package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"compclient/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDuplicate = errors.New("participation already exists")

// ParticipationRepo stores one participation per user.
// Lookups return nil, nil when nothing is stored.
type ParticipationRepo interface {
	Create(ctx context.Context, p *model.Participation) error
	GetByUser(ctx context.Context, userID string) (*model.Participation, error)
	SaveAnswer(ctx context.Context, id, questionID string, answer model.SubmittedAnswer) error
	Complete(ctx context.Context, id string, at time.Time) error
}

type participationRepo struct {
	collection *mongo.Collection
}

func NewParticipationRepo(db *mongo.Database) ParticipationRepo {
	return &participationRepo{
		collection: db.Collection("participations"),
	}
}

// EnsureIndexes creates the unique per-user index
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("participations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *participationRepo) Create(ctx context.Context, p *model.Participation) error {
	_, err := r.collection.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (r *participationRepo) GetByUser(ctx context.Context, userID string) (*model.Participation, error) {
	var p model.Participation
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *participationRepo) SaveAnswer(ctx context.Context, id, questionID string, answer model.SubmittedAnswer) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"answers." + questionID: answer}},
	)
	return err
}

func (r *participationRepo) Complete(ctx context.Context, id string, at time.Time) error {
	// only the first completion sticks
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusInProgress},
		bson.M{"$set": bson.M{"status": model.StatusCompleted, "completedAt": at}},
	)
	return err
}

type memoryParticipationRepo struct {
	mu     sync.RWMutex
	byUser map[string]*model.Participation
	byID   map[string]*model.Participation
}

// NewMemoryParticipationRepo is the in-process store used without MongoDB and in tests
func NewMemoryParticipationRepo() ParticipationRepo {
	return &memoryParticipationRepo{
		byUser: make(map[string]*model.Participation),
		byID:   make(map[string]*model.Participation),
	}
}

func (r *memoryParticipationRepo) Create(ctx context.Context, p *model.Participation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[p.UserID]; ok {
		return ErrDuplicate
	}
	stored := cloneParticipation(p)
	r.byUser[p.UserID] = stored
	r.byID[p.ID] = stored
	return nil
}

func (r *memoryParticipationRepo) GetByUser(ctx context.Context, userID string) (*model.Participation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[userID]
	if !ok {
		return nil, nil
	}
	return cloneParticipation(p), nil
}

func (r *memoryParticipationRepo) SaveAnswer(ctx context.Context, id, questionID string, answer model.SubmittedAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	if p.Answers == nil {
		p.Answers = make(map[string]model.SubmittedAnswer)
	}
	p.Answers[questionID] = answer
	return nil
}

func (r *memoryParticipationRepo) Complete(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != model.StatusInProgress {
		return nil
	}
	p.Status = model.StatusCompleted
	p.CompletedAt = &at
	return nil
}

func cloneParticipation(p *model.Participation) *model.Participation {
	c := *p
	c.QuestionIDs = append([]string(nil), p.QuestionIDs...)
	if p.Answers != nil {
		c.Answers = make(map[string]model.SubmittedAnswer, len(p.Answers))
		for k, v := range p.Answers {
			c.Answers[k] = v
		}
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
