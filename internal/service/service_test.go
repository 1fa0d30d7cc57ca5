package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/giftwiser/internal/activity"
	"github.com/mmynk/giftwiser/internal/assign"
	"github.com/mmynk/giftwiser/internal/auth"
	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/engine"
	"github.com/mmynk/giftwiser/internal/ledger"
	"github.com/mmynk/giftwiser/internal/middleware"
	"github.com/mmynk/giftwiser/internal/splits"
	"github.com/mmynk/giftwiser/internal/storage/sqldb"
)

type testServer struct {
	url   string
	jwt   *auth.JWTManager
	store *sqldb.Store
	hub   *changefeed.Hub
}

// setupTestServer serves all four services over a temp-file SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqldb.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hub := changefeed.NewHub(nil)
	outbox := activity.NewOutbox(store, nil, nil)
	deps := engine.Deps{Sink: outbox, Feed: hub}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	opts := []connect.HandlerOption{connect.WithInterceptors(middleware.RequireAuth(jwtManager))}
	mux := http.NewServeMux()
	mux.Handle(NewClaimServiceHandler(NewClaimService(ledger.New(store, deps)), opts...))
	mux.Handle(NewSplitServiceHandler(NewSplitService(splits.New(store, deps)), opts...))
	mux.Handle(NewAssignmentServiceHandler(NewAssignmentService(assign.New(store, deps, nil)), opts...))
	mux.Handle(NewEventServiceHandler(NewEventService(store, outbox, deps), opts...))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testServer{url: server.URL, jwt: jwtManager, store: store, hub: hub}
}

// call invokes procedure as userID. An empty userID sends no token.
func call[Req, Res any](t *testing.T, ts *testServer, procedure, userID string, msg *Req) (*Res, error) {
	t.Helper()

	client := connect.NewClient[Req, Res](http.DefaultClient, ts.url+procedure, connect.WithCodec(JSONCodec{}))
	req := connect.NewRequest(msg)
	if userID != "" {
		token, err := ts.jwt.Generate(userID)
		require.NoError(t, err)
		req.Header().Set("Authorization", "Bearer "+token)
	}

	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// mustCall is call for steps that must succeed.
func mustCall[Req, Res any](t *testing.T, ts *testServer, procedure, userID string, msg *Req) *Res {
	t.Helper()
	res, err := call[Req, Res](t, ts, procedure, userID, msg)
	require.NoError(t, err, procedure)
	return res
}

type fixture struct {
	eventID string
	listID  string
	itemID  string
}

// seedEvent has alice create an event with bob and dave as givers and carol as the
// recipient of alice's list, which holds one item.
func seedEvent(t *testing.T, ts *testServer, assignment AssignmentConfig) fixture {
	t.Helper()

	ev := mustCall[CreateEventRequest, EventResponse](t, ts, EventServiceCreateEventProcedure, "alice",
		&CreateEventRequest{Name: "Family Christmas"})
	for user, role := range map[string]string{"bob": "giver", "dave": "giver", "carol": "recipient"} {
		mustCall[AddMemberRequest, Empty](t, ts, EventServiceAddMemberProcedure, "alice",
			&AddMemberRequest{EventID: ev.Event.ID, UserID: user, Role: role})
	}

	list := mustCall[CreateListRequest, ListResponse](t, ts, EventServiceCreateListProcedure, "alice",
		&CreateListRequest{
			EventID:      ev.Event.ID,
			Name:         "Carol's list",
			RecipientIDs: []string{"carol"},
			Assignment:   assignment,
		})
	item := mustCall[CreateItemRequest, ItemResponse](t, ts, EventServiceCreateItemProcedure, "alice",
		&CreateItemRequest{ListID: list.List.ID, Description: "Board game"})

	return fixture{eventID: ev.Event.ID, listID: list.List.ID, itemID: item.Item.ID}
}
