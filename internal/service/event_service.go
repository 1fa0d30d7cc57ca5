package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/giftwiser/internal/activity"
	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/storage"
)

const (
	EventServiceName = "giftwiser.v1.EventService"

	EventServiceCreateEventProcedure            = "/giftwiser.v1.EventService/CreateEvent"
	EventServiceAddMemberProcedure              = "/giftwiser.v1.EventService/AddMember"
	EventServiceCreateListProcedure             = "/giftwiser.v1.EventService/CreateList"
	EventServiceGetListProcedure                = "/giftwiser.v1.EventService/GetList"
	EventServiceUpdateAssignmentConfigProcedure = "/giftwiser.v1.EventService/UpdateAssignmentConfig"
	EventServiceAddListRecipientProcedure       = "/giftwiser.v1.EventService/AddListRecipient"
	EventServiceAddListViewerProcedure          = "/giftwiser.v1.EventService/AddListViewer"
	EventServiceAddAssignmentExclusionProcedure = "/giftwiser.v1.EventService/AddAssignmentExclusion"
	EventServiceCreateItemProcedure             = "/giftwiser.v1.EventService/CreateItem"
	EventServiceDeleteItemProcedure             = "/giftwiser.v1.EventService/DeleteItem"
	EventServiceDeleteListProcedure             = "/giftwiser.v1.EventService/DeleteList"
	EventServiceListActivityProcedure           = "/giftwiser.v1.EventService/ListActivity"
)

// EventStore is the storage surface of the setup operations.
type EventStore interface {
	storage.MembershipReader
	storage.CatalogReader
	storage.SetupStore
}

// EventService implements the setup procedures the surrounding application uses to
// create events, memberships, lists and items, plus the caller's activity feed.
//
// Event admins manage memberships. A list's owner or an event admin manages the list
// and its items.
type EventService struct {
	store  EventStore
	outbox *activity.Outbox
	deps   engine.Deps
}

// NewEventService creates a new EventService. outbox may be nil, in which case
// ListActivity returns an empty feed.
func NewEventService(store EventStore, outbox *activity.Outbox, deps engine.Deps) *EventService {
	return &EventService{store: store, outbox: outbox, deps: deps}
}

// NewEventServiceHandler builds an HTTP handler serving every EventService procedure.
func NewEventServiceHandler(svc *EventService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoute(opts)
	handle(r, EventServiceCreateEventProcedure, svc.CreateEvent)
	handle(r, EventServiceAddMemberProcedure, svc.AddMember)
	handle(r, EventServiceCreateListProcedure, svc.CreateList)
	handle(r, EventServiceGetListProcedure, svc.GetList)
	handle(r, EventServiceUpdateAssignmentConfigProcedure, svc.UpdateAssignmentConfig)
	handle(r, EventServiceAddListRecipientProcedure, svc.AddListRecipient)
	handle(r, EventServiceAddListViewerProcedure, svc.AddListViewer)
	handle(r, EventServiceAddAssignmentExclusionProcedure, svc.AddAssignmentExclusion)
	handle(r, EventServiceCreateItemProcedure, svc.CreateItem)
	handle(r, EventServiceDeleteItemProcedure, svc.DeleteItem)
	handle(r, EventServiceDeleteListProcedure, svc.DeleteList)
	handle(r, EventServiceListActivityProcedure, svc.ListActivity)
	return "/" + EventServiceName + "/", r.mux
}

// CreateEvent creates an event with the caller as its first admin.
func (s *EventService) CreateEvent(ctx context.Context, req *connect.Request[CreateEventRequest]) (*connect.Response[EventResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	event := &models.Event{Name: req.Msg.Name, CreatedBy: userID}
	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.CreateEvent(ctx, event)
	}); err != nil {
		return nil, err
	}
	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.AddMember(ctx, &models.Member{EventID: event.ID, UserID: userID, Role: models.RoleAdmin})
	}); err != nil {
		return nil, err
	}

	s.deps.Log().Info("Event created", "event_id", event.ID, "created_by", userID)
	return connect.NewResponse(&EventResponse{Event: &Event{
		ID:        event.ID,
		Name:      event.Name,
		CreatedBy: event.CreatedBy,
		CreatedAt: event.CreatedAt,
	}}), nil
}

// AddMember adds a user to an event. Only event admins may add members.
func (s *EventService) AddMember(ctx context.Context, req *connect.Request[AddMemberRequest]) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, req.Msg.EventID, userID); err != nil {
		return nil, err
	}

	member := &models.Member{EventID: req.Msg.EventID, UserID: req.Msg.UserID, Role: models.Role(req.Msg.Role)}
	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.AddMember(ctx, member)
	}); err != nil {
		return nil, err
	}

	s.deps.Log().Info("Member added",
		"event_id", member.EventID,
		"user_id", member.UserID,
		"role", string(member.Role))
	return connect.NewResponse(&Empty{}), nil
}

// CreateList creates a list owned by the caller, who must be a member of the event.
// Recipients and viewers must be members too.
func (s *EventService) CreateList(ctx context.Context, req *connect.Request[CreateListRequest]) (*connect.Response[ListResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	if _, err := s.member(ctx, msg.EventID, userID); err != nil {
		return nil, err
	}
	for _, id := range append(append([]string(nil), msg.RecipientIDs...), msg.ViewerIDs...) {
		if _, err := s.member(ctx, msg.EventID, id); err != nil {
			return nil, err
		}
	}

	cfg := msg.Assignment.toModel()
	list := &models.List{
		EventID:                         msg.EventID,
		OwnerID:                         userID,
		Name:                            msg.Name,
		Scope:                           models.VisibilityScope(msg.Scope),
		RandomAssignmentEnabled:         cfg.RandomAssignmentEnabled,
		RandomAssignmentMode:            cfg.RandomAssignmentMode,
		RandomReceiverAssignmentEnabled: cfg.RandomReceiverAssignmentEnabled,
		RecipientIDs:                    msg.RecipientIDs,
		ViewerIDs:                       msg.ViewerIDs,
	}
	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.CreateList(ctx, list)
	}); err != nil {
		return nil, err
	}

	s.deps.Publish(changefeed.Change{Kind: changefeed.KindList, ID: list.ID, Op: changefeed.OpCreated, ListID: list.ID})
	s.deps.Log().Info("List created", "list_id", list.ID, "event_id", list.EventID, "owner_id", userID)
	return connect.NewResponse(&ListResponse{List: listToWire(list)}), nil
}

// GetList returns a list the caller may see.
func (s *EventService) GetList(ctx context.Context, req *connect.Request[GetListRequest]) (*connect.Response[ListResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.list(ctx, req.Msg.ListID)
	if err != nil {
		return nil, err
	}
	if _, err := s.member(ctx, list.EventID, userID); err != nil {
		return nil, err
	}
	if !list.VisibleTo(userID) {
		// Selected-scope lists do not exist for outsiders.
		return nil, domainerrors.NotFoundf("list %s not found", list.ID)
	}
	return connect.NewResponse(&ListResponse{List: listToWire(list)}), nil
}

// UpdateAssignmentConfig replaces a list's assignment configuration.
func (s *EventService) UpdateAssignmentConfig(ctx context.Context, req *connect.Request[UpdateAssignmentConfigRequest]) (*connect.Response[ListResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedList(ctx, req.Msg.ListID, userID); err != nil {
		return nil, err
	}

	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.UpdateAssignmentConfig(ctx, req.Msg.ListID, req.Msg.Assignment.toModel())
	}); err != nil {
		return nil, err
	}
	list, err := s.list(ctx, req.Msg.ListID)
	if err != nil {
		return nil, err
	}

	s.deps.Publish(changefeed.Change{Kind: changefeed.KindList, ID: list.ID, Op: changefeed.OpUpdated, ListID: list.ID})
	return connect.NewResponse(&ListResponse{List: listToWire(list)}), nil
}

// AddListRecipient designates a member as a recipient of a list.
func (s *EventService) AddListRecipient(ctx context.Context, req *connect.Request[ListUserRequest]) (*connect.Response[Empty], error) {
	return s.addListUser(ctx, req.Msg, s.store.AddListRecipient)
}

// AddListViewer grants a member visibility of a selected-scope list.
func (s *EventService) AddListViewer(ctx context.Context, req *connect.Request[ListUserRequest]) (*connect.Response[Empty], error) {
	return s.addListUser(ctx, req.Msg, s.store.AddListViewer)
}

// AddAssignmentExclusion removes a member from a list's receiver assignment pool.
func (s *EventService) AddAssignmentExclusion(ctx context.Context, req *connect.Request[ListUserRequest]) (*connect.Response[Empty], error) {
	return s.addListUser(ctx, req.Msg, s.store.AddAssignmentExclusion)
}

func (s *EventService) addListUser(ctx context.Context, msg *ListUserRequest, add func(ctx context.Context, listID, userID string) error) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.managedList(ctx, msg.ListID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.member(ctx, list.EventID, msg.UserID); err != nil {
		return nil, err
	}

	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return add(ctx, msg.ListID, msg.UserID)
	}); err != nil {
		return nil, err
	}
	s.deps.Publish(changefeed.Change{Kind: changefeed.KindList, ID: list.ID, Op: changefeed.OpUpdated, ListID: list.ID})
	return connect.NewResponse(&Empty{}), nil
}

// CreateItem adds an item to a list.
func (s *EventService) CreateItem(ctx context.Context, req *connect.Request[CreateItemRequest]) (*connect.Response[ItemResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedList(ctx, req.Msg.ListID, userID); err != nil {
		return nil, err
	}

	item := &models.Item{ListID: req.Msg.ListID, Description: req.Msg.Description}
	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.CreateItem(ctx, item)
	}); err != nil {
		return nil, err
	}

	s.deps.Publish(changefeed.Change{
		Kind: changefeed.KindItem, ID: item.ID, Op: changefeed.OpCreated,
		ListID: item.ListID, ItemID: item.ID,
	})
	return connect.NewResponse(&ItemResponse{Item: &Item{
		ID:          item.ID,
		ListID:      item.ListID,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
	}}), nil
}

// DeleteItem removes an item together with its claims and split requests.
func (s *EventService) DeleteItem(ctx context.Context, req *connect.Request[DeleteItemRequest]) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resilience.Call(ctx, s.deps.Guard, func(ctx context.Context) (*models.Item, error) {
		return s.store.GetItem(ctx, req.Msg.ItemID)
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.managedList(ctx, item.ListID, userID); err != nil {
		return nil, err
	}

	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.DeleteItem(ctx, item.ID)
	}); err != nil {
		return nil, err
	}

	s.deps.Publish(changefeed.Change{
		Kind: changefeed.KindItem, ID: item.ID, Op: changefeed.OpDeleted,
		ListID: item.ListID, ItemID: item.ID,
	})
	s.deps.Log().Info("Item deleted", "item_id", item.ID, "list_id", item.ListID)
	return connect.NewResponse(&Empty{}), nil
}

// DeleteList removes a list together with its items, claims and split requests.
func (s *EventService) DeleteList(ctx context.Context, req *connect.Request[DeleteListRequest]) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.managedList(ctx, req.Msg.ListID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Guard.Do(ctx, func(ctx context.Context) error {
		return s.store.DeleteList(ctx, list.ID)
	}); err != nil {
		return nil, err
	}

	s.deps.Publish(changefeed.Change{Kind: changefeed.KindList, ID: list.ID, Op: changefeed.OpDeleted, ListID: list.ID})
	s.deps.Log().Info("List deleted", "list_id", list.ID, "event_id", list.EventID)
	return connect.NewResponse(&Empty{}), nil
}

// ListActivity returns the caller's activity in an event: what they did and what
// was addressed to them. Other members' activity is never returned, since it would
// reveal claimers to list recipients.
func (s *EventService) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.member(ctx, req.Msg.EventID, userID); err != nil {
		return nil, err
	}

	out := &ListActivityResponse{Activities: []*Activity{}}
	if s.outbox == nil {
		return connect.NewResponse(out), nil
	}

	acts, err := s.outbox.List(ctx, req.Msg.EventID, req.Msg.Since, req.Msg.Limit)
	if err != nil {
		return nil, err
	}
	for _, a := range acts {
		if a.ActorID != userID && a.TargetUserID != userID {
			continue
		}
		out.Activities = append(out.Activities, &Activity{
			ID:           a.ID,
			Kind:         string(a.Kind),
			ActorID:      a.ActorID,
			TargetUserID: a.TargetUserID,
			ListID:       a.ListID,
			ItemID:       a.ItemID,
			Attributes:   a.Attributes,
			CreatedAt:    a.CreatedAt,
		})
	}
	return connect.NewResponse(out), nil
}

func (s *EventService) list(ctx context.Context, listID string) (*models.List, error) {
	return resilience.Call(ctx, s.deps.Guard, func(ctx context.Context) (*models.List, error) {
		return s.store.GetList(ctx, listID)
	})
}

// member returns the membership of userID, mapping a missing row to ErrNotAMember.
func (s *EventService) member(ctx context.Context, eventID, userID string) (*models.Member, error) {
	m, err := resilience.Call(ctx, s.deps.Guard, func(ctx context.Context) (*models.Member, error) {
		return s.store.GetMember(ctx, eventID, userID)
	})
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrNotAMember.WithMessage("user " + userID + " is not a member of the event")
	}
	return m, err
}

func (s *EventService) requireAdmin(ctx context.Context, eventID, userID string) error {
	m, err := s.member(ctx, eventID, userID)
	if domainerrors.Is(err, domainerrors.ErrNotAMember) {
		return domainerrors.ErrNotAuthorized
	}
	if err != nil {
		return err
	}
	if !m.IsAdmin() {
		return domainerrors.ErrNotAuthorized
	}
	return nil
}

// managedList loads a list the caller owns or administers.
func (s *EventService) managedList(ctx context.Context, listID, userID string) (*models.List, error) {
	list, err := s.list(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID == userID {
		return list, nil
	}
	if err := s.requireAdmin(ctx, list.EventID, userID); err != nil {
		return nil, err
	}
	return list, nil
}
