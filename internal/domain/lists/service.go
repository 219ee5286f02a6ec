package lists

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/sanitize"
	"github.com/Togather-Foundation/listsync/internal/validation"
)

// ListService creates, updates and deletes lists and serves list reads.
type ListService struct {
	coordinator
}

func NewListService(d Deps) *ListService {
	return &ListService{coordinator: newCoordinator(d, "lists")}
}

// CreateList creates a list owned by ownerID.
func (s *ListService) CreateList(ctx context.Context, in CreateListInput, ownerID int64) (list *List, err error) {
	ctx, span := s.startSpan(ctx, "lists.CreateList", ownerID)
	defer func() { s.finish(span, "list", "create", err) }()

	if err := requireActor(ownerID); err != nil {
		return nil, err
	}
	in.Title = sanitize.Text(in.Title)
	in.Description = sanitize.OptionalHTML(in.Description)
	if in.Description != nil && *in.Description == "" {
		in.Description = nil
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	rec, err := s.inTx(ctx, func(tx *txScope) error {
		id, err := tx.repo.CreateList(ctx, CreateListParams{
			Title:       in.Title,
			Description: in.Description,
			OwnerID:     ownerID,
		})
		if err != nil {
			return fmt.Errorf("create list: %w", err)
		}
		if list, err = tx.repo.GetList(ctx, id); err != nil {
			return fmt.Errorf("load list %d: %w", id, err)
		}
		return tx.Audit(ctx, activity.Entry{
			Action: activity.ActionListCreated,
			UserID: ownerID,
			ListID: int64Ptr(id),
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("list.id", list.ID))
	s.logger.Info().Int64("list_id", list.ID).Int64("owner_id", ownerID).Msg("list created")
	s.publish(ctx, EventListCreated, list, list.ID, rec)
	return list, nil
}

// UpdateList applies patch to an existing list.
func (s *ListService) UpdateList(ctx context.Context, id int64, patch ListPatch, actorID int64) (list *List, err error) {
	ctx, span := s.startSpan(ctx, "lists.UpdateList", actorID)
	span.SetAttributes(attribute.Int64("list.id", id))
	defer func() { s.finish(span, "list", "update", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	patch.Title = sanitize.OptionalText(patch.Title)
	patch.Description = sanitize.OptionalHTML(patch.Description)
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	rec, err := s.inTx(ctx, func(tx *txScope) error {
		existing, err := tx.repo.GetList(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpUpdateList, existing); err != nil {
			return err
		}
		if err := tx.repo.UpdateList(ctx, id, patch); err != nil {
			return fmt.Errorf("update list %d: %w", id, err)
		}
		if list, err = tx.repo.GetList(ctx, id); err != nil {
			return fmt.Errorf("load list %d: %w", id, err)
		}
		return tx.Audit(ctx, activity.Entry{
			Action: activity.ActionListUpdated,
			UserID: actorID,
			ListID: int64Ptr(id),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("list_id", id).Int64("actor_id", actorID).Msg("list updated")
	s.publish(ctx, EventListUpdated, list, id, rec)
	return list, nil
}

// DeleteList removes a list and its items. The audit record is written
// before the rows are removed so that it is enriched with the list title,
// and the broadcast carries the pre-deletion snapshot.
func (s *ListService) DeleteList(ctx context.Context, id int64, actorID int64) (err error) {
	ctx, span := s.startSpan(ctx, "lists.DeleteList", actorID)
	span.SetAttributes(attribute.Int64("list.id", id))
	defer func() { s.finish(span, "list", "delete", err) }()

	if err := requireActor(actorID); err != nil {
		return err
	}

	var snapshot *List
	rec, err := s.inTx(ctx, func(tx *txScope) error {
		existing, err := tx.repo.GetList(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpDeleteList, existing); err != nil {
			return err
		}
		snapshot = existing
		if err := tx.Audit(ctx, activity.Entry{
			Action: activity.ActionListDeleted,
			UserID: actorID,
			ListID: int64Ptr(id),
		}); err != nil {
			return err
		}
		if err := tx.repo.DeleteList(ctx, id); err != nil {
			return fmt.Errorf("delete list %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("list_id", id).Int64("actor_id", actorID).Msg("list deleted")
	s.publish(ctx, EventListDeleted, snapshot, id, rec)
	return nil
}

// All returns every list, newest first.
func (s *ListService) All(ctx context.Context) ([]List, error) {
	lists, err := s.repo.AllLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all lists: %w", err)
	}
	return lists, nil
}

// Get returns one list with its owner and items.
func (s *ListService) Get(ctx context.Context, id int64) (*List, error) {
	return s.repo.GetList(ctx, id)
}

// ByOwner returns the lists owned by ownerID, newest first.
func (s *ListService) ByOwner(ctx context.Context, ownerID int64) ([]List, error) {
	lists, err := s.repo.ListsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list lists for owner %d: %w", ownerID, err)
	}
	return lists, nil
}
