package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/workorder"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/stream"
)

// Tool names.
const (
	ToolGetPOILocations    = "get_poi_locations"
	ToolGetAvailableRoutes = "get_available_routes"
	ToolCreatePatrolOrder  = "create_patrol_order"
)

// DefaultRouteRadius is the search radius in metres when none is given.
const DefaultRouteRadius = 2000.0

// WorkOrderAPI is the subset of the work-order client the tools use.
type WorkOrderAPI interface {
	SearchPOI(ctx context.Context, name string) ([]workorder.POIResponse, error)
	RoutesByRadius(ctx context.Context, req workorder.RouteRequest) ([]workorder.RouteResponse, error)
	RouteByID(ctx context.Context, routeID string) (*workorder.RouteResponse, error)
	CreateOrder(ctx context.Context, req workorder.CreateOrderRequest) (int, error)
}

// OrderStore persists patrol orders locally.
type OrderStore interface {
	CreatePatrolOrder(ctx context.Context, order *domain.PatrolOrder) error
	UpdatePatrolOrderExternalID(ctx context.Context, id string, externalID int) error
}

// RegisterPatrolTools registers the work-order tools on r.
func RegisterPatrolTools(r *Registry, api WorkOrderAPI, orders OrderStore) error {
	p := &patrolTools{api: api, orders: orders}
	for _, t := range []Tool{
		{
			Name:        ToolGetPOILocations,
			Description: "根据巡查区域获取具体POI位置列表,供用户选择。若返回空列表,需提示用户重新确定巡查区域",
			Schema:      json.RawMessage(poiSchema),
			Execute:     p.getPOILocations,
		},
		{
			Name:        ToolGetAvailableRoutes,
			Description: "根据具体位置获取可用航线列表,供用户选择。若返回空列表,需提示用户重新选择具体位置或重新确认巡查区域",
			Schema:      json.RawMessage(routesSchema),
			Execute:     p.getAvailableRoutes,
		},
		{
			Name:        ToolCreatePatrolOrder,
			Description: "创建巡查工单，必须在收集完所有必填信息并获得用户明确同意后才能调用",
			Schema:      json.RawMessage(createOrderSchema),
			Execute:     p.createPatrolOrder,
		},
	} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

const poiSchema = `{
	"type": "object",
	"properties": {
		"area": {"type": "string", "minLength": 1, "description": "巡查区域名称,如:光谷广场"}
	},
	"required": ["area"]
}`

const routesSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "description": "具体位置名称"},
		"x": {"type": "number", "description": "具体位置经度"},
		"y": {"type": "number", "description": "具体位置纬度"},
		"radius": {"type": "number", "description": "搜索半径，单位：米，默认2000"}
	},
	"required": ["name", "x", "y"]
}`

const createOrderSchema = `{
	"type": "object",
	"properties": {
		"orderNature": {"type": "string", "description": "工单性质,如:空中巡查、野外建设巡查等"},
		"orderName": {"type": "string", "minLength": 1, "description": "工单名称,自动生成,格式:区域巡查-yyyyMMddHHmmss"},
		"patrolArea": {"type": "string", "description": "巡查区域,如:光谷广场"},
		"specificLocation": {"type": "string", "description": "具体位置,从POI列表中用户选择的位置"},
		"routeId": {"type": "string", "description": "执行航线ID,用户选择的航线对应的ID"},
		"executionType": {"type": "string", "description": "执行方式:单次/多个/自定义"},
		"executionTimes": {"type": "string", "description": "执行时间,多个为逗号分隔,格式:yyyy-MM-dd HH:mm"},
		"patrolResults": {"type": "string", "description": "巡查结果,可多选,格式:照片 或 视频 或 照片,视频"},
		"patrolTarget": {"type": "string", "description": "巡查目标,如:违章停车检测"},
		"description": {"type": "string", "description": "工单描述,自动生成"}
	},
	"required": ["orderNature", "orderName", "routeId", "executionType", "executionTimes"]
}`

type patrolTools struct {
	api    WorkOrderAPI
	orders OrderStore
}

func (p *patrolTools) getPOILocations(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Area string `json:"area"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("failed to decode args: %w", err)
	}

	resp, err := p.api.SearchPOI(ctx, in.Area)
	if err != nil {
		return nil, fmt.Errorf("failed to search poi: %w", err)
	}
	locations := make([]domain.POILocation, 0, len(resp))
	for _, poi := range resp {
		locations = append(locations, domain.POILocation{Name: poi.Name, X: poi.X, Y: poi.Y, Address: poi.Address})
	}
	if len(locations) == 0 {
		log.Printf("WARN: no poi found for area %q", in.Area)
	}
	return json.Marshal(locations)
}

func (p *patrolTools) getAvailableRoutes(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Name   string  `json:"name"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Radius float64 `json:"radius"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("failed to decode args: %w", err)
	}
	if in.Radius <= 0 {
		in.Radius = DefaultRouteRadius
	}

	resp, err := p.api.RoutesByRadius(ctx, workorder.RouteRequest{Lon: in.X, Lat: in.Y, Radius: in.Radius})
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	routes := make([]domain.Route, 0, len(resp))
	for _, r := range resp {
		routes = append(routes, domain.Route{RouteID: r.RouteID, RouteName: r.RouteName})
	}
	if len(routes) == 0 {
		log.Printf("WARN: no routes near %q (%f, %f) within %.0fm", in.Name, in.X, in.Y, in.Radius)
	}
	return json.Marshal(routes)
}

type createOrderArgs struct {
	OrderNature      string `json:"orderNature"`
	OrderName        string `json:"orderName"`
	PatrolArea       string `json:"patrolArea"`
	SpecificLocation string `json:"specificLocation"`
	RouteID          string `json:"routeId"`
	ExecutionType    string `json:"executionType"`
	ExecutionTimes   string `json:"executionTimes"`
	PatrolResults    string `json:"patrolResults"`
	PatrolTarget     string `json:"patrolTarget"`
	Description      string `json:"description"`
}

func (p *patrolTools) createPatrolOrder(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in createOrderArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("failed to decode args: %w", err)
	}

	order := &domain.PatrolOrder{
		ID:               "po_" + uuid.New().String()[:8],
		ConversationID:   ConversationID(ctx),
		OrderName:        in.OrderName,
		OrderNature:      domain.ParseOrderNature(in.OrderNature),
		PatrolArea:       in.PatrolArea,
		SpecificLocation: in.SpecificLocation,
		RouteID:          in.RouteID,
		ExecutionType:    domain.ParseExecutionType(in.ExecutionType),
		ExecutionTimes:   splitList(in.ExecutionTimes),
		PatrolResults:    splitList(in.PatrolResults),
		PatrolTarget:     in.PatrolTarget,
		Description:      in.Description,
		CreatedAt:        time.Now(),
	}

	if err := p.orders.CreatePatrolOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save patrol order: %w", err)
	}
	log.Printf("INFO: patrol order saved locally: id=%s name=%s", order.ID, order.OrderName)

	req := buildCreateRequest(order)
	p.attachRouteDetails(ctx, &req, order.RouteID)

	// The local order stands even when the business system rejects it.
	externalID, err := p.api.CreateOrder(ctx, req)
	if err != nil {
		log.Printf("ERROR: failed to create work order via api for %s: %v", order.ID, err)
	} else if externalID > 0 {
		order.ExternalWorkOrderID = externalID
		if err := p.orders.UpdatePatrolOrderExternalID(ctx, order.ID, externalID); err != nil {
			log.Printf("WARN: failed to record external id for %s: %v", order.ID, err)
		}
	}

	result, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	stream.RecordToolResult(ctx, result)
	return result, nil
}

// attachRouteDetails fills the route of the first strategy from the route
// service. The order is still submitted with the bare route id when the
// lookup fails.
func (p *patrolTools) attachRouteDetails(ctx context.Context, req *workorder.CreateOrderRequest, routeID string) {
	if len(req.ExecuteStrategyList) == 0 || req.ExecuteStrategyList[0].RouteInfo == nil {
		return
	}
	route, err := p.api.RouteByID(ctx, routeID)
	if err != nil || route == nil {
		log.Printf("WARN: failed to load route %s: %v", routeID, err)
		return
	}
	info := req.ExecuteStrategyList[0].RouteInfo
	info.RouteName = route.RouteName
	info.RouteType = route.Type
	info.EstimatedTime = route.EstimateDuration
	info.RouteLength = route.RouteLength
	info.PointCount = route.PointNum
}

func buildCreateRequest(order *domain.PatrolOrder) workorder.CreateOrderRequest {
	strategy := workorder.ExecuteStrategy{
		ExecutionStrategy: order.ExecutionType.Strategy(),
	}
	switch order.ExecutionType {
	case domain.ExecutionTypeSingle:
		if len(order.ExecutionTimes) > 0 {
			strategy.SingleExecutionTime = order.ExecutionTimes[0]
		}
	case domain.ExecutionTypeMultiple:
		for i, t := range order.ExecutionTimes {
			strategy.ExecutionTimes = append(strategy.ExecutionTimes, workorder.ExecutionTime{Key: i + 1, Value: t})
		}
	default:
		strategy.StrategyDesc = strings.Join(order.ExecutionTimes, ",")
	}

	req := workorder.CreateOrderRequest{
		Name:            order.OrderName,
		Description:     order.Description,
		AchievementType: order.PatrolResults,
		Source:          workorder.SourceAI,
	}
	if id, err := strconv.Atoi(order.RouteID); err == nil {
		strategy.RouteInfo = &workorder.RouteInfo{RouteID: id, ExistRouteType: 1}
		req.RouteIDs = []int{id}
	}
	req.ExecuteStrategyList = []workorder.ExecuteStrategy{strategy}
	return req
}

// splitList splits a comma separated list, accepting full-width commas.
func splitList(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
