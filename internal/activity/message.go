package activity

import "fmt"

const (
	unknownList = "Unknown List"
	unknownItem = "Unknown Item"
	unknownUser = "Unknown User"
)

type messageTemplate func(actor, list, item string) string

var messageTemplates = map[Action]messageTemplate{
	ActionListCreated: func(actor, list, _ string) string {
		return fmt.Sprintf("%s created list \"%s\"", actor, list)
	},
	ActionListUpdated: func(actor, list, _ string) string {
		return fmt.Sprintf("%s updated list \"%s\"", actor, list)
	},
	ActionListDeleted: func(actor, list, _ string) string {
		return fmt.Sprintf("%s deleted list \"%s\"", actor, list)
	},
	ActionItemCreated: func(actor, list, item string) string {
		return fmt.Sprintf("%s added item \"%s\" to \"%s\"", actor, item, list)
	},
	ActionItemUpdated: func(actor, list, item string) string {
		return fmt.Sprintf("%s updated item \"%s\" in \"%s\"", actor, item, list)
	},
	ActionItemCompleted: func(actor, list, item string) string {
		return fmt.Sprintf("%s marked \"%s\" as completed in \"%s\"", actor, item, list)
	},
	ActionItemUncompleted: func(actor, list, item string) string {
		return fmt.Sprintf("%s marked \"%s\" as incomplete in \"%s\"", actor, item, list)
	},
	ActionItemDeleted: func(actor, list, item string) string {
		return fmt.Sprintf("%s removed item \"%s\" from \"%s\"", actor, item, list)
	},
}

// FormatMessage renders the human-readable sentence for an activity. It
// depends only on the action, the actor name and the list and item titles.
func FormatMessage(a Activity) string {
	actor := a.User.Name
	if actor == "" {
		actor = unknownUser
	}
	list := unknownList
	if a.List != nil && a.List.Title != "" {
		list = a.List.Title
	}
	item := unknownItem
	if a.Item != nil && a.Item.Title != "" {
		item = a.Item.Title
	}

	if tmpl, ok := messageTemplates[a.Action]; ok {
		return tmpl(actor, list, item)
	}
	return fmt.Sprintf("%s performed %s on \"%s\"", actor, a.Action, list)
}

// WithMessage returns a copy of a with Message populated.
func WithMessage(a Activity) Activity {
	a.Message = FormatMessage(a)
	return a
}
