package service

import (
	"context"
	"log"
	"strconv"

	"github.com/southdmw/zeus-ops-workorder/internal/metrics"
)

// Stop halts the live generation of conversationID.
// It returns false when no generation is live for it.
func (s *Service) Stop(ctx context.Context, conversationID string) bool {
	found := s.sessions.Stop(conversationID)
	metrics.StopRequestsTotal.WithLabelValues(strconv.FormatBool(found)).Inc()
	if found {
		log.Printf("INFO: stop requested for conversation %s", conversationID)
	}
	return found
}
