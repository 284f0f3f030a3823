package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

// ActionKind is the closed set of dispatchable action types. Anything
// outside the set executes as a generic custom action.
type ActionKind string

const (
	ActionWeather    ActionKind = "weather"
	ActionCalendar   ActionKind = "calendar"
	ActionMotivation ActionKind = "motivation"
	ActionTimer      ActionKind = "timer"
	ActionMusic      ActionKind = "music"
	ActionReminder   ActionKind = "reminder"
	ActionCustom     ActionKind = "custom"
)

// ActionDescriptor is one entry of an automation's ordered action list.
// Lower priority runs first.
type ActionDescriptor struct {
	Type     ActionKind        `json:"type"`
	Priority int               `json:"priority"`
	Params   map[string]string `json:"params,omitempty"`
}

// ActionResult is what executing one action produced.
type ActionResult struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Success bool                   `json:"success"`
}

type builtinAutomation struct {
	Trigger string
	Name    string
	Actions []ActionDescriptor
}

// builtinAutomations fire for every user regardless of stored custom
// automations. Matches are unioned with custom matches; overlapping
// phrases fire both.
var builtinAutomations = []builtinAutomation{
	{
		Trigger: "good morning",
		Name:    "Morning routine",
		Actions: []ActionDescriptor{
			{Type: ActionMusic, Priority: 1, Params: map[string]string{"playlist": "morning"}},
			{Type: ActionWeather, Priority: 2},
			{Type: ActionCalendar, Priority: 3},
			{Type: ActionMotivation, Priority: 4},
		},
	},
	{
		Trigger: "start work",
		Name:    "Work session start",
		Actions: []ActionDescriptor{
			{Type: ActionTimer, Priority: 1, Params: map[string]string{"mode": "focus", "minutes": "50"}},
			{Type: ActionMusic, Priority: 2, Params: map[string]string{"playlist": "focus"}},
			{Type: ActionReminder, Priority: 3, Params: map[string]string{"text": "Stay hydrated"}},
			{Type: ActionCalendar, Priority: 4},
		},
	},
	{
		Trigger: "end work",
		Name:    "Work session end",
		Actions: []ActionDescriptor{
			{Type: ActionTimer, Priority: 1, Params: map[string]string{"mode": "stop"}},
			{Type: ActionReminder, Priority: 2, Params: map[string]string{"text": "Note tomorrow's priorities"}},
			{Type: ActionMusic, Priority: 3, Params: map[string]string{"playlist": "wind-down"}},
			{Type: ActionMotivation, Priority: 4},
		},
	},
	{
		Trigger: "break time",
		Name:    "Break",
		Actions: []ActionDescriptor{
			{Type: ActionTimer, Priority: 1, Params: map[string]string{"mode": "break", "minutes": "10"}},
			{Type: ActionMusic, Priority: 2, Params: map[string]string{"playlist": "chill"}},
			{Type: ActionReminder, Priority: 3, Params: map[string]string{"text": "Step away from the screen"}},
			{Type: ActionMotivation, Priority: 4},
		},
	},
	{
		Trigger: "study session",
		Name:    "Study session",
		Actions: []ActionDescriptor{
			{Type: ActionTimer, Priority: 1, Params: map[string]string{"mode": "pomodoro", "minutes": "25"}},
			{Type: ActionMusic, Priority: 2, Params: map[string]string{"playlist": "study"}},
			{Type: ActionReminder, Priority: 3, Params: map[string]string{"text": "Keep notes as you go"}},
			{Type: ActionMotivation, Priority: 4},
		},
	},
}

// AutomationStats is the aggregate view served by GET /api/automations.
type AutomationStats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	TotalTriggers int `json:"total_triggers"`
}

type AutomationService interface {
	// CheckTriggers matches the message against active custom trigger
	// phrases and the built-in table, executes all matched action
	// lists, and returns the results. Custom matches bump usage
	// counters immediately.
	CheckTriggers(ctx context.Context, userID uint, message string) ([]ActionResult, error)
	Create(ctx context.Context, userID uint, name, triggerPhrase string, actions []ActionDescriptor) (*types.Automation, error)
	ListWithStats(ctx context.Context, userID uint) ([]*types.Automation, AutomationStats, error)
}

type automationService struct {
	db             *gorm.DB
	log            *logger.Logger
	automationRepo repos.AutomationRepo
}

func NewAutomationService(db *gorm.DB, log *logger.Logger, automationRepo repos.AutomationRepo) AutomationService {
	return &automationService{
		db:             db,
		log:            log.With("service", "AutomationService"),
		automationRepo: automationRepo,
	}
}

func (as *automationService) CheckTriggers(ctx context.Context, userID uint, message string) ([]ActionResult, error) {
	lower := strings.ToLower(message)
	var matched []ActionDescriptor

	customs, err := as.automationRepo.ListActiveByUser(ctx, nil, userID)
	if err != nil {
		// Custom automations degrade; built-ins still fire.
		as.log.Warn("Failed to load custom automations", "user_id", userID, "error", err)
	}
	for _, automation := range customs {
		if automation.TriggerPhrase == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(automation.TriggerPhrase)) {
			continue
		}
		if err := as.automationRepo.IncrementUsage(ctx, nil, automation.ID); err != nil {
			as.log.Warn("Failed to bump automation usage", "automation_id", automation.ID, "error", err)
		}
		var actions []ActionDescriptor
		if err := json.Unmarshal(automation.Actions, &actions); err != nil {
			as.log.Warn("Malformed automation actions", "automation_id", automation.ID, "error", err)
			continue
		}
		matched = append(matched, actions...)
	}

	for _, builtin := range builtinAutomations {
		if strings.Contains(lower, builtin.Trigger) {
			matched = append(matched, builtin.Actions...)
		}
	}

	if len(matched) == 0 {
		return nil, nil
	}
	return executeActions(matched), nil
}

func executeActions(actions []ActionDescriptor) []ActionResult {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})
	results := make([]ActionResult, 0, len(actions))
	for _, action := range actions {
		results = append(results, executeAction(action))
	}
	return results
}

func executeAction(action ActionDescriptor) ActionResult {
	param := func(key, fallback string) string {
		if v, ok := action.Params[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	switch action.Type {
	case ActionWeather:
		return ActionResult{
			Type:    string(ActionWeather),
			Message: "Today looks clear, around 22°C. A light jacket should do.",
			Data:    map[string]interface{}{"condition": "clear", "temperature_c": 22},
			Success: true,
		}
	case ActionCalendar:
		return ActionResult{
			Type:    string(ActionCalendar),
			Message: "Your calendar is clear for the next two hours.",
			Data:    map[string]interface{}{"upcoming_events": 0},
			Success: true,
		}
	case ActionMotivation:
		return ActionResult{
			Type:    string(ActionMotivation),
			Message: "Small steps every day add up to big results.",
			Success: true,
		}
	case ActionTimer:
		mode := param("mode", "focus")
		minutes := param("minutes", "25")
		if mode == "stop" {
			return ActionResult{
				Type:    string(ActionTimer),
				Message: "Timer stopped. Nice work today.",
				Data:    map[string]interface{}{"mode": mode},
				Success: true,
			}
		}
		return ActionResult{
			Type:    string(ActionTimer),
			Message: fmt.Sprintf("Started a %s-minute %s timer.", minutes, mode),
			Data:    map[string]interface{}{"mode": mode, "minutes": minutes},
			Success: true,
		}
	case ActionMusic:
		playlist := param("playlist", "favorites")
		return ActionResult{
			Type:    string(ActionMusic),
			Message: fmt.Sprintf("Queued up your %s playlist.", playlist),
			Data:    map[string]interface{}{"playlist": playlist},
			Success: true,
		}
	case ActionReminder:
		text := param("text", "Reminder set")
		return ActionResult{
			Type:    string(ActionReminder),
			Message: "Reminder: " + text,
			Data:    map[string]interface{}{"text": text},
			Success: true,
		}
	case ActionCustom:
		return ActionResult{
			Type:    string(ActionCustom),
			Message: "Custom action executed.",
			Success: true,
		}
	default:
		// Unknown kinds fall through to the generic record.
		return ActionResult{
			Type:    string(action.Type),
			Message: "Custom action executed.",
			Success: true,
		}
	}
}

func (as *automationService) Create(ctx context.Context, userID uint, name, triggerPhrase string, actions []ActionDescriptor) (*types.Automation, error) {
	triggerPhrase = strings.TrimSpace(triggerPhrase)
	if triggerPhrase == "" {
		return nil, fmt.Errorf("trigger phrase required")
	}
	if len(actions) == 0 {
		actions = []ActionDescriptor{{Type: ActionCustom, Priority: 1}}
	}
	if name == "" {
		name = triggerPhrase
	}
	raw, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("encode actions: %w", err)
	}
	automation := &types.Automation{
		UserID:        userID,
		Name:          name,
		TriggerPhrase: triggerPhrase,
		Actions:       raw,
		IsActive:      true,
	}
	return as.automationRepo.Create(ctx, nil, automation)
}

func (as *automationService) ListWithStats(ctx context.Context, userID uint) ([]*types.Automation, AutomationStats, error) {
	automations, err := as.automationRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, AutomationStats{}, err
	}
	stats := AutomationStats{Total: len(automations)}
	for _, automation := range automations {
		if automation.IsActive {
			stats.Active++
		}
		stats.TotalTriggers += automation.UsageCount
	}
	return automations, stats, nil
}
