package repository

import (
	"context"
	"sort"
	"sync"

	"compclient/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type QuestionRepo interface {
	// GetAll returns every question ordered by id
	GetAll(ctx context.Context) ([]model.Question, error)

	// GetByIDs returns the questions in the order of ids, skipping unknown ids
	GetByIDs(ctx context.Context, ids []string) ([]model.Question, error)

	Upsert(ctx context.Context, question *model.Question) error
}

type questionRepo struct {
	collection *mongo.Collection
}

func NewQuestionRepo(db *mongo.Database) QuestionRepo {
	return &questionRepo{
		collection: db.Collection("questions"),
	}
}

func (r *questionRepo) GetAll(ctx context.Context) ([]model.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var questions []model.Question
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var found []model.Question
	if err = cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

func (r *questionRepo) Upsert(ctx context.Context, question *model.Question) error {
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": question.ID},
		question,
		options.Replace().SetUpsert(true),
	)
	return err
}

type memoryQuestionRepo struct {
	mu        sync.RWMutex
	questions map[string]model.Question
}

// NewMemoryQuestionRepo creates an in-process question store holding questions
func NewMemoryQuestionRepo(questions ...model.Question) QuestionRepo {
	r := &memoryQuestionRepo{questions: make(map[string]model.Question)}
	for _, q := range questions {
		r.questions[q.ID] = q
	}
	return r
}

func (r *memoryQuestionRepo) GetAll(ctx context.Context) ([]model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]model.Question, 0, len(r.questions))
	for _, q := range r.questions {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func (r *memoryQuestionRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found []model.Question
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			found = append(found, q)
		}
	}
	return found, nil
}

func (r *memoryQuestionRepo) Upsert(ctx context.Context, question *model.Question) error {
	r.mu.Lock()
	r.questions[question.ID] = *question
	r.mu.Unlock()
	return nil
}

func orderByIDs(questions []model.Question, ids []string) []model.Question {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(questions))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered
}
