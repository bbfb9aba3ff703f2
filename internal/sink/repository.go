package sink

import (
	"context"
	"errors"

	"tova-go/internal/models"
	"tova-go/internal/repository"
)

// ResultSaver is the part of repository.Results the sink writes through.
type ResultSaver interface {
	SaveTestResultTx(ctx context.Context, summary *models.TestResult, events []models.TestEvent) error
}

// Repository writes submissions straight to the database.
type Repository struct {
	store ResultSaver
}

func NewRepository(store ResultSaver) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Submit(ctx context.Context, sub models.Submission) error {
	summary, events, err := sub.ToRecords()
	if err != nil {
		return err
	}
	err = r.store.SaveTestResultTx(ctx, &summary, events)
	if errors.Is(err, repository.ErrDuplicateResult) {
		return ErrDuplicate
	}
	return err
}
