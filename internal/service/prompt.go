package service

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/workorder"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

const (
	currentDatePlaceholder  = "{current_date}"
	orderNaturesPlaceholder = "{{ORDER_NATURES}}"
)

const natureCacheTTL = 10 * time.Minute

const defaultSystemPrompt = `你是无人机巡查工单助手，负责通过多轮对话帮助用户创建巡查工单。当前日期：{current_date}。

可选工单性质：{{ORDER_NATURES}}。

工作流程：
1. 确认工单性质与巡查区域。
2. 调用 get_poi_locations 获取区域内的具体位置，请用户选择。
3. 调用 get_available_routes 获取该位置附近的可用航线，请用户选择。
4. 确认执行方式（单次/多次/自定义）与执行时间、巡查结果类型、巡查目标。
5. 汇总全部信息并获得用户明确同意后，调用 create_patrol_order 创建工单。

要求：每次只询问一项缺失信息；工具返回空列表时提示用户重新确认；不要编造位置或航线。`

// NatureLister lists the work-order natures offered to the user.
type NatureLister interface {
	NatureList(ctx context.Context) ([]workorder.NatureResponse, error)
}

// natureCache keeps the nature dictionary for natureCacheTTL. One caller
// refreshes at a time and the lock is never held across the fetch; other
// callers get the stale value, or the built-in labels when nothing was
// fetched yet.
type natureCache struct {
	mu         sync.Mutex
	lister     NatureLister
	value      string
	fetched    time.Time
	refreshing bool
}

// get returns the natures joined for the prompt. Failures fall back to the
// built-in labels and are not cached.
func (c *natureCache) get(ctx context.Context, now time.Time) string {
	fallback := strings.Join(domain.OrderNatureLabels(), "、")
	if c == nil || c.lister == nil {
		return fallback
	}

	c.mu.Lock()
	if c.value != "" && now.Sub(c.fetched) < natureCacheTTL {
		value := c.value
		c.mu.Unlock()
		return value
	}
	if c.refreshing {
		value := c.value
		c.mu.Unlock()
		if value == "" {
			return fallback
		}
		return value
	}
	c.refreshing = true
	c.mu.Unlock()

	value := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if value == "" {
		if c.value != "" {
			return c.value
		}
		return fallback
	}
	c.value = value
	c.fetched = now
	return value
}

// fetch loads the dictionary and returns "" on failure.
func (c *natureCache) fetch(ctx context.Context) string {
	natures, err := c.lister.NatureList(ctx)
	if err != nil {
		log.Printf("WARN: failed to load order natures, using defaults: %v", err)
		return ""
	}
	labels := make([]string, 0, len(natures))
	for _, n := range natures {
		if n.Label != "" {
			labels = append(labels, n.Label)
		}
	}
	if len(labels) == 0 {
		log.Printf("WARN: order nature dictionary is empty, using defaults")
		return ""
	}
	return strings.Join(labels, "、")
}

// SetNatureLister makes the prompt list natures from l instead of the
// built-in labels.
func (s *Service) SetNatureLister(l NatureLister) {
	s.natures = &natureCache{lister: l}
}

// loadSystemPrompt reads the prompt template from path, falling back to
// the built-in prompt.
func loadSystemPrompt(path string) string {
	if path == "" {
		return defaultSystemPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("WARN: failed to read system prompt %s, using default: %v", path, err)
		return defaultSystemPrompt
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		log.Printf("WARN: system prompt %s is empty, using default", path)
		return defaultSystemPrompt
	}
	return string(data)
}

// renderPrompt substitutes the current date and order natures into the
// prompt template.
func renderPrompt(template string, now time.Time, natures string) string {
	return strings.NewReplacer(
		currentDatePlaceholder, now.Format("2006-01-02"),
		orderNaturesPlaceholder, natures,
	).Replace(template)
}
