// Package domain defines the core domain models for the work-order assistant.
package domain

// Role is the author of a turn record.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// ChatType classifies the assistant flow a chat belongs to.
type ChatType int

const (
	ChatTypeTargetDetection ChatType = 1
	ChatTypeAlertJudgement  ChatType = 2
	ChatTypeSmartQuery      ChatType = 3
	ChatTypeCreateWorkOrder ChatType = 4
)

// EventKind is the tag of an OutputEvent.
type EventKind string

const (
	EventKindChunk      EventKind = "message"
	EventKindMetadata   EventKind = "metadata"
	EventKindToolResult EventKind = "orderinfo"
	EventKindTerminal   EventKind = "complete"
)

// TerminalPayload is the fixed data carried by every Terminal event.
const TerminalPayload = "done"

// CancelledSuffix is appended to assistant content persisted for a stopped turn.
const CancelledSuffix = " [stopped]"

// OrderNature is the business nature of a patrol work order.
type OrderNature string

const (
	OrderNatureFieldConstruction   OrderNature = "FIELD_CONSTRUCTION"
	OrderNatureAerialPatrol        OrderNature = "AERIAL_PATROL"
	OrderNatureForestProtection    OrderNature = "FOREST_PROTECTION"
	OrderNatureAtmosphereDetection OrderNature = "ATMOSPHERE_DETECTION"
	OrderNaturePhotography         OrderNature = "PHOTOGRAPHY"
	OrderNatureAerialPhotography   OrderNature = "AERIAL_PHOTOGRAPHY"
	OrderNatureSurveying           OrderNature = "SURVEYING"
	OrderNatureOther               OrderNature = "OTHER"
)

var orderNatureLabels = map[OrderNature]string{
	OrderNatureFieldConstruction:   "野外建设巡查",
	OrderNatureAerialPatrol:        "空中巡查",
	OrderNatureForestProtection:    "护林防火",
	OrderNatureAtmosphereDetection: "大气探测",
	OrderNaturePhotography:         "航空摄影",
	OrderNatureAerialPhotography:   "空中拍照",
	OrderNatureSurveying:           "测绘",
	OrderNatureOther:               "其他",
}

// OrderNatureLabels returns the display labels of every nature in
// dictionary order.
func OrderNatureLabels() []string {
	order := []OrderNature{
		OrderNatureFieldConstruction, OrderNatureAerialPatrol, OrderNatureForestProtection,
		OrderNatureAtmosphereDetection, OrderNaturePhotography, OrderNatureAerialPhotography,
		OrderNatureSurveying, OrderNatureOther,
	}
	labels := make([]string, len(order))
	for i, n := range order {
		labels[i] = orderNatureLabels[n]
	}
	return labels
}

// Label returns the display label the work-order system uses for n.
func (n OrderNature) Label() string {
	if l, ok := orderNatureLabels[n]; ok {
		return l
	}
	return string(n)
}

// ParseOrderNature accepts either the enum name or its display label.
// Unknown values map to OrderNatureOther.
func ParseOrderNature(s string) OrderNature {
	for n, label := range orderNatureLabels {
		if s == label || s == string(n) {
			return n
		}
	}
	return OrderNatureOther
}

// ExecutionType is how often a patrol order runs.
type ExecutionType string

const (
	ExecutionTypeSingle   ExecutionType = "SINGLE"
	ExecutionTypeMultiple ExecutionType = "MULTIPLE"
	ExecutionTypeCustom   ExecutionType = "CUSTOM"
)

// ParseExecutionType maps the user-facing wording to an ExecutionType.
func ParseExecutionType(s string) ExecutionType {
	switch s {
	case "多次", "多个", string(ExecutionTypeMultiple):
		return ExecutionTypeMultiple
	case "自定义", string(ExecutionTypeCustom):
		return ExecutionTypeCustom
	default:
		return ExecutionTypeSingle
	}
}

// Label returns the display label of t.
func (t ExecutionType) Label() string {
	switch t {
	case ExecutionTypeMultiple:
		return "多次"
	case ExecutionTypeCustom:
		return "自定义"
	default:
		return "单次"
	}
}

// Strategy returns the numeric execution strategy of the work-order API.
func (t ExecutionType) Strategy() int {
	switch t {
	case ExecutionTypeMultiple:
		return 3
	case ExecutionTypeCustom:
		return 4
	default:
		return 1
	}
}

// PatrolResult is the kind of artefact a patrol produces.
type PatrolResult string

const (
	PatrolResultPhoto PatrolResult = "PHOTO"
	PatrolResultVideo PatrolResult = "VIDEO"
)
