package store

import "context"

// Observer receives the outcome of every document call.
type Observer func(collection, op string, err error)

type instrumented struct {
	next    Documents
	observe Observer
}

// Instrument wraps docs so each call is reported to observe.
func Instrument(docs Documents, observe Observer) Documents {
	if observe == nil {
		return docs
	}
	return &instrumented{next: docs, observe: observe}
}

func (i *instrumented) List(ctx context.Context, collection string, q Query) (*DocumentList, error) {
	out, err := i.next.List(ctx, collection, q)
	i.observe(collection, "list", err)
	return out, err
}

func (i *instrumented) Get(ctx context.Context, collection, id string) (Document, error) {
	out, err := i.next.Get(ctx, collection, id)
	i.observe(collection, "get", err)
	return out, err
}

func (i *instrumented) Create(ctx context.Context, collection, id string, data Document) (Document, error) {
	out, err := i.next.Create(ctx, collection, id, data)
	i.observe(collection, "create", err)
	return out, err
}

func (i *instrumented) Update(ctx context.Context, collection, id string, data Document) (Document, error) {
	out, err := i.next.Update(ctx, collection, id, data)
	i.observe(collection, "update", err)
	return out, err
}

func (i *instrumented) Delete(ctx context.Context, collection, id string) error {
	err := i.next.Delete(ctx, collection, id)
	i.observe(collection, "delete", err)
	return err
}
