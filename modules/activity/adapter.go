package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/taskflow/domain/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort is the port other modules use to read activity feeds.
type ActivityPort interface {
	List(ctx context.Context, userID string, limit int) ([]Entry, error)
}

// ActivityAdapter implements ActivityPort using the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

var _ ActivityPort = (*ActivityAdapter)(nil)

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) *ActivityAdapter {
	return &ActivityAdapter{
		container: container,
	}
}

// List returns up to limit of the user's most recent entries.
func (a *ActivityAdapter) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	req := ListActivityRequest{UserID: userID, Limit: limit}
	var resp ListActivityResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListActivity,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Internal(fmt.Errorf("%s request failed: %w", ServiceListActivity, err))
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Items == nil {
		return []Entry{}, nil
	}
	return resp.Items, nil
}
