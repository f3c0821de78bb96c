package brain

// ActionType tags the recommendation variants CURIOSITY can emit.
type ActionType string

const (
	ActionShiftBudget    ActionType = "shift_budget"
	ActionPauseCreative  ActionType = "pause_creative"
	ActionIncreaseBudget ActionType = "increase_budget"
	ActionFocusRetention ActionType = "focus_retention"
)

// ActionTypes lists every variant in generator order.
var ActionTypes = []ActionType{ActionShiftBudget, ActionPauseCreative, ActionIncreaseBudget, ActionFocusRetention}

// Level is the label shared by urgency and confidence.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// EntityKind names what an action entity refers to.
type EntityKind string

const (
	EntityChannel  EntityKind = "channel"
	EntityCreative EntityKind = "creative"
	EntityCohort   EntityKind = "cohort"
)

// EntityRef points an action at the object the executor would mutate.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
	Name string     `json:"name,omitempty"`
	Role string     `json:"role,omitempty"`
}

// Renderings are the three persona framings of the same action.
type Renderings struct {
	Executive  string `json:"executive"`
	Analyst    string `json:"analyst"`
	Imperative string `json:"imperative"`
}

// ActionRecommendation is a scored candidate produced by CURIOSITY.
type ActionRecommendation struct {
	ID                 string      `json:"id"`
	Type               ActionType  `json:"type"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	EstimatedImpactUSD float64     `json:"estimatedImpactUsd"`
	Confidence         Level       `json:"confidence"`
	ConfidenceScore    int         `json:"confidenceScore"`
	Urgency            Level       `json:"urgency"`
	UrgencyScore       int         `json:"urgencyScore"`
	Score              float64     `json:"score"`
	Entities           []EntityRef `json:"entities"`
	Rationale          string      `json:"rationale"`
	Renderings         Renderings  `json:"renderings"`
}
