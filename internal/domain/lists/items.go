package lists

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Togather-Foundation/listsync/internal/activity"
	"github.com/Togather-Foundation/listsync/internal/sanitize"
	"github.com/Togather-Foundation/listsync/internal/validation"
)

// ItemService mutates and reads list items.
type ItemService struct {
	coordinator
}

func NewItemService(d Deps) *ItemService {
	return &ItemService{coordinator: newCoordinator(d, "items")}
}

// CreateItem adds an item to an existing list.
func (s *ItemService) CreateItem(ctx context.Context, listID int64, in CreateItemInput, actorID int64) (item *Item, err error) {
	ctx, span := s.startSpan(ctx, "items.CreateItem", actorID)
	span.SetAttributes(attribute.Int64("list.id", listID))
	defer func() { s.finish(span, "item", "create", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	in.Title = sanitize.Text(in.Title)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	rec, err := s.inTx(ctx, func(tx *txScope) error {
		list, err := tx.repo.GetList(ctx, listID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpCreateItem, list); err != nil {
			return err
		}
		id, err := tx.repo.CreateItem(ctx, CreateItemParams{
			ListID:    listID,
			Title:     in.Title,
			Completed: in.Completed,
		})
		if err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		if item, err = tx.repo.GetItem(ctx, id); err != nil {
			return fmt.Errorf("load item %d: %w", id, err)
		}
		return tx.Audit(ctx, activity.Entry{
			Action: activity.ActionItemCreated,
			UserID: actorID,
			ListID: int64Ptr(listID),
			ItemID: int64Ptr(id),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", item.ID).Int64("list_id", listID).Int64("actor_id", actorID).Msg("item created")
	s.publish(ctx, EventItemCreated, item, listID, rec)
	return item, nil
}

// UpdateItem applies patch to an existing item.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, patch ItemPatch, actorID int64) (item *Item, err error) {
	ctx, span := s.startSpan(ctx, "items.UpdateItem", actorID)
	span.SetAttributes(attribute.Int64("item.id", id))
	defer func() { s.finish(span, "item", "update", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	patch.Title = sanitize.OptionalText(patch.Title)
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}

	rec, err := s.inTx(ctx, func(tx *txScope) error {
		existing, list, err := s.loadItem(ctx, tx.repo, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpUpdateItem, list); err != nil {
			return err
		}
		if err := tx.repo.UpdateItem(ctx, id, patch); err != nil {
			return fmt.Errorf("update item %d: %w", id, err)
		}
		if item, err = tx.repo.GetItem(ctx, id); err != nil {
			return fmt.Errorf("load item %d: %w", id, err)
		}
		return tx.Audit(ctx, activity.Entry{
			Action: activity.ActionItemUpdated,
			UserID: actorID,
			ListID: int64Ptr(existing.ListID),
			ItemID: int64Ptr(id),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("item_id", id).Int64("actor_id", actorID).Msg("item updated")
	s.publish(ctx, EventItemUpdated, item, item.ListID, rec)
	return item, nil
}

// ToggleItem flips an item's completion flag. The read and the write are
// not locked against each other: concurrent toggles race, the last write
// wins and every toggle keeps its own audit record.
func (s *ItemService) ToggleItem(ctx context.Context, id int64, actorID int64) (item *Item, err error) {
	ctx, span := s.startSpan(ctx, "items.ToggleItem", actorID)
	span.SetAttributes(attribute.Int64("item.id", id))
	defer func() { s.finish(span, "item", "toggle", err) }()

	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	rec, err := s.inTx(ctx, func(tx *txScope) error {
		existing, list, err := s.loadItem(ctx, tx.repo, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpToggleItem, list); err != nil {
			return err
		}
		completed := !existing.Completed
		if err := tx.repo.SetItemCompleted(ctx, id, completed); err != nil {
			return fmt.Errorf("toggle item %d: %w", id, err)
		}
		if item, err = tx.repo.GetItem(ctx, id); err != nil {
			return fmt.Errorf("load item %d: %w", id, err)
		}
		action := activity.ActionItemUncompleted
		if completed {
			action = activity.ActionItemCompleted
		}
		return tx.Audit(ctx, activity.Entry{
			Action: action,
			UserID: actorID,
			ListID: int64Ptr(existing.ListID),
			ItemID: int64Ptr(id),
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("item.completed", item.Completed))
	s.logger.Info().Int64("item_id", id).Bool("completed", item.Completed).Int64("actor_id", actorID).Msg("item toggled")
	s.publish(ctx, EventItemToggled, item, item.ListID, rec)
	return item, nil
}

// DeleteItem removes an item. The audit record is written before the row is
// removed and the broadcast carries the pre-deletion snapshot.
func (s *ItemService) DeleteItem(ctx context.Context, id int64, actorID int64) (err error) {
	ctx, span := s.startSpan(ctx, "items.DeleteItem", actorID)
	span.SetAttributes(attribute.Int64("item.id", id))
	defer func() { s.finish(span, "item", "delete", err) }()

	if err := requireActor(actorID); err != nil {
		return err
	}

	var snapshot *Item
	rec, err := s.inTx(ctx, func(tx *txScope) error {
		existing, list, err := s.loadItem(ctx, tx.repo, id)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, actorID, OpDeleteItem, list); err != nil {
			return err
		}
		snapshot = existing
		if err := tx.Audit(ctx, activity.Entry{
			Action: activity.ActionItemDeleted,
			UserID: actorID,
			ListID: int64Ptr(existing.ListID),
			ItemID: int64Ptr(id),
		}); err != nil {
			return err
		}
		if err := tx.repo.DeleteItem(ctx, id); err != nil {
			return fmt.Errorf("delete item %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int64("item_id", id).Int64("actor_id", actorID).Msg("item deleted")
	s.publish(ctx, EventItemDeleted, snapshot, snapshot.ListID, rec)
	return nil
}

// ByList returns a list summary and its items, oldest first.
func (s *ItemService) ByList(ctx context.Context, listID int64) (*ItemsPage, error) {
	list, err := s.repo.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ItemsByList(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("list items for list %d: %w", listID, err)
	}
	return &ItemsPage{
		List:  Summary{ID: list.ID, Title: list.Title, Description: list.Description},
		Items: items,
	}, nil
}

// Get returns one item with its list reference.
func (s *ItemService) Get(ctx context.Context, id int64) (*Item, error) {
	return s.repo.GetItem(ctx, id)
}

// Stats summarises completion for a list. The completion rate is a rounded
// percentage and is zero for an empty list.
func (s *ItemService) Stats(ctx context.Context, listID int64) (*ItemStats, error) {
	if _, err := s.repo.GetList(ctx, listID); err != nil {
		return nil, err
	}
	total, completed, err := s.repo.CountItems(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("count items for list %d: %w", listID, err)
	}
	return newItemStats(total, completed), nil
}

func newItemStats(total, completed int64) *ItemStats {
	stats := &ItemStats{Total: total, Completed: completed, Pending: total - completed}
	if total > 0 {
		stats.CompletionRate = int(math.Round(float64(completed) / float64(total) * 100))
	}
	return stats
}

// loadItem fetches an item and the list it belongs to, for policy checks.
func (s *ItemService) loadItem(ctx context.Context, repo Repository, id int64) (*Item, *List, error) {
	item, err := repo.GetItem(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	list, err := repo.GetList(ctx, item.ListID)
	if err != nil {
		return nil, nil, fmt.Errorf("load list %d for item %d: %w", item.ListID, id, err)
	}
	return item, list, nil
}
