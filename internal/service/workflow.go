package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// innerWorkflowUser is the Dify user of internal workflow calls.
const innerWorkflowUser = "zeus-ops-ai"

const recheckTitle = "请问图片是否包含如下告警目标"

var (
	// ErrWorkflowUnavailable is returned when no workflow runner is configured.
	ErrWorkflowUnavailable = errors.New("workflow runner not configured")
	// ErrMissingInputs is returned when a recheck carries no workflow inputs.
	ErrMissingInputs = errors.New("inputs are required")
)

// WorkflowRunner runs a blocking workflow.
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, req domain.WorkflowRequest) (*domain.WorkflowResponse, error)
}

// SetWorkflowRunner enables the recheck workflow endpoints.
func (s *Service) SetWorkflowRunner(r WorkflowRunner) {
	s.workflows = r
}

// RunRecheck runs the alarm recheck workflow inside a chat. Both the
// question and the recognition result are stored as terminated records.
func (s *Service) RunRecheck(ctx context.Context, req domain.RecheckRequest) (*domain.WorkflowResponse, error) {
	if s.workflows == nil {
		return nil, ErrWorkflowUnavailable
	}
	if req.Inputs == nil {
		return nil, ErrMissingInputs
	}
	title := recheckTitle
	if req.Inputs != nil && req.Inputs.WarningType != "" {
		title += "：" + req.Inputs.WarningType
	}

	chat, err := s.ensureChat(ctx, req.ChatID, title)
	if err != nil {
		return nil, err
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	question := &domain.TurnRecord{
		ChatID:         chat.ChatID,
		ConversationID: conversationID,
		ChatType:       req.ChatType,
		Role:           domain.RoleUser,
		Content:        title,
		ImgURL:         req.Inputs.ImageURL(),
		StopFlag:       true,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendTurn(ctx, question); err != nil {
		log.Printf("ERROR: failed to save recheck question for conversation %s: %v", conversationID, err)
	}

	wfReq := domain.WorkflowRequest{
		Inputs:           req.Inputs,
		ResponseMode:     "blocking",
		User:             s.config.DefaultUser,
		ConversationID:   conversationID,
		AutoGenerateName: true,
		TraceID:          uuid.New().String(),
	}
	log.Printf("INFO: running recheck workflow: conversation=%s trace=%s", conversationID, wfReq.TraceID)

	resp, err := s.workflows.RunWorkflow(ctx, wfReq)
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow: %w", err)
	}
	resp.ChatID = chat.ChatID
	resp.Title = title

	answer := &domain.TurnRecord{
		ChatID:         chat.ChatID,
		ConversationID: conversationID,
		ChatType:       req.ChatType,
		Role:           domain.RoleAssistant,
		Content:        workflowResult(resp),
		ImgURL:         req.Inputs.ImageURL(),
		StopFlag:       true,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendTurn(context.WithoutCancel(ctx), answer); err != nil {
		log.Printf("ERROR: failed to save recheck result for conversation %s: %v", conversationID, err)
	}
	return resp, nil
}

// RunWorkflowInner forwards a workflow run for internal callers.
func (s *Service) RunWorkflowInner(ctx context.Context, req domain.WorkflowRequest) (*domain.WorkflowResponse, error) {
	if s.workflows == nil {
		return nil, ErrWorkflowUnavailable
	}
	req.User = innerWorkflowUser
	if req.TraceID == "" {
		req.TraceID = uuid.New().String()
	}
	log.Printf("INFO: running inner workflow: user=%s trace=%s", req.User, req.TraceID)

	resp, err := s.workflows.RunWorkflow(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to run workflow: %w", err)
	}
	return resp, nil
}

// AlarmTypes returns the configured alarm types keyed by code.
func (s *Service) AlarmTypes() map[string]string {
	out := make(map[string]string, len(s.config.DifyAlarmTypes))
	for k, v := range s.config.DifyAlarmTypes {
		out[k] = v
	}
	return out
}

// AlarmTypesByName returns the alarm types keyed by display name. When two
// codes share a name the smallest code wins.
func (s *Service) AlarmTypesByName() map[string]string {
	codes := make([]string, 0, len(s.config.DifyAlarmTypes))
	for k := range s.config.DifyAlarmTypes {
		codes = append(codes, k)
	}
	sort.Strings(codes)

	out := make(map[string]string, len(codes))
	for _, code := range codes {
		name := s.config.DifyAlarmTypes[code]
		if _, ok := out[name]; !ok {
			out[name] = code
		}
	}
	return out
}

// workflowResult renders the text output of a recheck run.
func workflowResult(resp *domain.WorkflowResponse) string {
	if resp.Data == nil || resp.Data.Outputs == nil {
		return "识别结果：无输出"
	}
	raw, ok := resp.Data.Outputs["text"]
	if !ok {
		return "识别结果：无输出"
	}
	text, ok := raw.(map[string]interface{})
	if !ok {
		return "识别结果：解析失败"
	}
	output, ok := text["output"]
	if !ok || output == nil {
		return "识别结果：无输出"
	}
	return fmt.Sprintf("识别结果：%v", output)
}
