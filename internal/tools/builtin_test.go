package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/workorder"
	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/repository"
	"github.com/southdmw/zeus-ops-workorder/internal/stream"
	"github.com/southdmw/zeus-ops-workorder/tests/helpers"
)

type fakeAPI struct {
	mu         sync.Mutex
	routeReqs  []workorder.RouteRequest
	created    []workorder.CreateOrderRequest
	tokens     []string
	createErr  error
	externalID int
}

func (f *fakeAPI) record(ctx context.Context) {
	tok, _ := credential.Get(ctx)
	f.mu.Lock()
	f.tokens = append(f.tokens, tok)
	f.mu.Unlock()
}

func (f *fakeAPI) SearchPOI(ctx context.Context, name string) ([]workorder.POIResponse, error) {
	f.record(ctx)
	if name == "nowhere" {
		return nil, nil
	}
	return []workorder.POIResponse{{Name: name + "A口", X: 114.1, Y: 30.2}}, nil
}

func (f *fakeAPI) RoutesByRadius(ctx context.Context, req workorder.RouteRequest) ([]workorder.RouteResponse, error) {
	f.record(ctx)
	f.mu.Lock()
	f.routeReqs = append(f.routeReqs, req)
	f.mu.Unlock()
	return []workorder.RouteResponse{{RouteID: 7, RouteName: "环线"}}, nil
}

func (f *fakeAPI) RouteByID(ctx context.Context, routeID string) (*workorder.RouteResponse, error) {
	f.record(ctx)
	if routeID != "7" {
		return nil, errors.New("route not found")
	}
	return &workorder.RouteResponse{RouteID: 7, RouteName: "环线", Type: 2, EstimateDuration: 600, RouteLength: 1500.5, PointNum: 12}, nil
}

func (f *fakeAPI) CreateOrder(ctx context.Context, req workorder.CreateOrderRequest) (int, error) {
	f.record(ctx)
	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()
	return f.externalID, f.createErr
}

func newPatrolRegistry(t *testing.T, api *fakeAPI) (*Registry, *repository.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	r := NewRegistry(nil, 0)
	require.NoError(t, RegisterPatrolTools(r, api, db))
	return r, db
}

func TestGetPOILocations(t *testing.T) {
	api := &fakeAPI{}
	r, _ := newPatrolRegistry(t, api)
	ctx, carrier := credential.Set(context.Background(), "tok-A")
	defer carrier.Clear()

	out, err := r.Execute(ctx, ToolGetPOILocations, json.RawMessage(`{"area":"光谷广场"}`))
	require.NoError(t, err)

	var pois []domain.POILocation
	require.NoError(t, json.Unmarshal(out, &pois))
	require.Len(t, pois, 1)
	assert.Equal(t, "光谷广场A口", pois[0].Name)
	assert.Equal(t, []string{"tok-A"}, api.tokens)

	out, err = r.Execute(ctx, ToolGetPOILocations, json.RawMessage(`{"area":"nowhere"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}

func TestGetAvailableRoutesDefaultRadius(t *testing.T) {
	api := &fakeAPI{}
	r, _ := newPatrolRegistry(t, api)

	_, err := r.Execute(context.Background(), ToolGetAvailableRoutes, json.RawMessage(`{"name":"A口","x":114.1,"y":30.2}`))
	require.NoError(t, err)
	require.Len(t, api.routeReqs, 1)
	assert.Equal(t, DefaultRouteRadius, api.routeReqs[0].Radius)
	assert.Equal(t, 114.1, api.routeReqs[0].Lon)
}

func TestCreatePatrolOrderPublishesToolResult(t *testing.T) {
	api := &fakeAPI{externalID: 1001}
	r, db := newPatrolRegistry(t, api)

	sb := stream.NewSideband()
	ctx, carrier := credential.Set(context.Background(), "tok-A")
	defer carrier.Clear()
	ctx = WithConversationID(stream.WithSideband(ctx, sb), "conv-1")

	args := `{"orderNature":"空中巡查","orderName":"光谷巡查-20250101","patrolArea":"光谷广场",
		"routeId":"7","executionType":"多次","executionTimes":"2025-01-01 10:00，2025-01-02 10:00",
		"patrolResults":"照片,视频"}`
	out, err := r.Execute(ctx, ToolCreatePatrolOrder, json.RawMessage(args))
	require.NoError(t, err)

	var order domain.PatrolOrder
	require.NoError(t, json.Unmarshal(out, &order))
	assert.Equal(t, domain.OrderNatureAerialPatrol, order.OrderNature)
	assert.Equal(t, domain.ExecutionTypeMultiple, order.ExecutionType)
	assert.Equal(t, []string{"2025-01-01 10:00", "2025-01-02 10:00"}, order.ExecutionTimes)
	assert.Equal(t, 1001, order.ExternalWorkOrderID)
	assert.Equal(t, "conv-1", order.ConversationID)

	published, ok := sb.ToolResult()
	require.True(t, ok)
	assert.JSONEq(t, string(out), string(published))

	require.Len(t, api.created, 1)
	req := api.created[0]
	assert.Equal(t, workorder.SourceAI, req.Source)
	assert.Equal(t, []int{7}, req.RouteIDs)
	require.Len(t, req.ExecuteStrategyList, 1)
	assert.Equal(t, 3, req.ExecuteStrategyList[0].ExecutionStrategy)
	route := req.ExecuteStrategyList[0].RouteInfo
	require.NotNil(t, route)
	assert.Equal(t, 7, route.RouteID)
	assert.Equal(t, "环线", route.RouteName)
	assert.Equal(t, 12, route.PointCount)
	assert.Len(t, req.ExecuteStrategyList[0].ExecutionTimes, 2)

	stored, err := db.GetPatrolOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1001, stored.ExternalWorkOrderID)
}

func TestCreatePatrolOrderKeepsLocalOrderOnAPIFailure(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("upstream down")}
	r, _ := newPatrolRegistry(t, api)

	out, err := r.Execute(context.Background(), ToolCreatePatrolOrder, json.RawMessage(
		`{"orderNature":"测绘","orderName":"n","routeId":"x","executionType":"单次","executionTimes":"2025-01-01 10:00"}`))
	require.NoError(t, err)

	var order domain.PatrolOrder
	require.NoError(t, json.Unmarshal(out, &order))
	assert.Equal(t, 0, order.ExternalWorkOrderID)
	assert.Equal(t, domain.OrderNatureSurveying, order.OrderNature)
	require.Len(t, api.created, 1)
	assert.Equal(t, "2025-01-01 10:00", api.created[0].ExecuteStrategyList[0].SingleExecutionTime)
	assert.Nil(t, api.created[0].RouteIDs)
}

func TestCreatePatrolOrderRequiresFields(t *testing.T) {
	r, _ := newPatrolRegistry(t, &fakeAPI{})
	_, err := r.Execute(context.Background(), ToolCreatePatrolOrder, json.RawMessage(`{"orderName":"n"}`))
	assert.True(t, errors.Is(err, ErrInvalidArgs))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"照片", "视频"}, splitList(" 照片， 视频 ,"))
	assert.Nil(t, splitList(""))
}
