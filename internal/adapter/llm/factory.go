package llm

import (
	"log"

	"github.com/southdmw/zeus-ops-workorder/internal/config"
)

// ModeMock selects the mock producer.
const ModeMock = "MOCK"

// NewProducer creates a producer based on cfg.LLMMode.
// If LLM_MODE=MOCK, returns a MockClient; otherwise returns a real Client.
func NewProducer(cfg *config.Config) Producer {
	if cfg.LLMMode == ModeMock {
		log.Println("LLM_MODE=MOCK detected, using mock LLM producer")
		return NewMockClient()
	}
	return NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMMaxToolRounds)
}
