package domain

import "time"

// PatrolOrder is a work order created by the assistant and stored locally.
type PatrolOrder struct {
	ID                  string        `json:"id"`
	ConversationID      string        `json:"conversationId,omitempty"`
	OrderName           string        `json:"orderName"`
	OrderNature         OrderNature   `json:"orderNature"`
	PatrolArea          string        `json:"patrolArea"`
	SpecificLocation    string        `json:"specificLocation"`
	RouteID             string        `json:"routeId"`
	ExecutionType       ExecutionType `json:"executionType"`
	ExecutionTimes      []string      `json:"executionTimes"`
	PatrolResults       []string      `json:"patrolResults"`
	PatrolTarget        string        `json:"patrolTarget"`
	Description         string        `json:"description"`
	ExternalWorkOrderID int           `json:"externalWorkOrderId,omitempty"`
	CreatedAt           time.Time     `json:"createTime"`
}

// Booking is a stored patrol order with its display labels.
type Booking struct {
	PatrolOrder
	OrderNatureDesc   string `json:"orderNatureDesc"`
	ExecutionTypeDesc string `json:"executionTypeDesc"`
	PatrolResultsDesc string `json:"patrolResultsDesc"`
}

// POILocation is a point of interest returned by the work-order API.
type POILocation struct {
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Address string  `json:"address,omitempty"`
}

// Route is a flight route available near a location.
type Route struct {
	RouteID   int    `json:"routeId"`
	RouteName string `json:"routeName"`
}
