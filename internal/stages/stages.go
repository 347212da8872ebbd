package stages

import "github.com/aretw0/venueflow/pkg/registry"

// Handlers returns a handler for every stage type.
func Handlers() []registry.Handler {
	return []registry.Handler{
		NewSubmission(),
		NewPostSubmission(),
		NewMatching(),
		NewBid(),
		NewReview(),
		NewRebuttal(),
		NewEthicsReview(),
		NewMetaReview(),
		NewDecision(),
		NewSubmissionRevision(),
		NewComment(),
		NewPostDecision(),
		NewReviewRating(),
	}
}

// NewRegistry returns a registry holding every stage handler.
func NewRegistry() *registry.Registry {
	return registry.NewRegistry(Handlers()...)
}

// NewFunctions returns a function registry holding every process function.
func NewFunctions() *registry.Functions {
	fns := registry.NewFunctions()
	RegisterFunctions(fns)
	return fns
}
