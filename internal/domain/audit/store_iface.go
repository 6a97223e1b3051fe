package audit

import "context"

type StoreAPI interface {
	Insert(ctx context.Context, evt Event) (string, error)
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error)
}
