// Package blenddraft runs the custom blend wizard on the device: a reducer for
// the five-step draft and a manager that persists it and saves it once an
// identity is available.
package blenddraft

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const (
	FirstStep = 1
	LastStep  = 5

	DefaultQuantityGrams = 500
)

// Wizard steps.
const (
	StepBrewingMethod = 1
	StepOrigin        = 2
	StepRoastLevel    = 3
	StepGrindSize     = 4
	StepDetails       = 5
)

var grindByMethod = map[enums.BrewingMethod]enums.GrindSize{
	enums.BrewingMethodEspresso:    enums.GrindSizeFine,
	enums.BrewingMethodAeropress:   enums.GrindSizeFine,
	enums.BrewingMethodPourOver:    enums.GrindSizeMedium,
	enums.BrewingMethodDrip:        enums.GrindSizeMedium,
	enums.BrewingMethodFrenchPress: enums.GrindSizeCoarse,
	enums.BrewingMethodColdBrew:    enums.GrindSizeCoarse,
}

// GrindFor returns the suggested grind for a brewing method.
func GrindFor(method enums.BrewingMethod) enums.GrindSize {
	if grind, ok := grindByMethod[method]; ok {
		return grind
	}
	return enums.GrindSizeMedium
}

// Draft is the in-progress blend. LeftFirstStep latches the first time the
// wizard moves past step 1; after that a method change no longer touches the
// grind.
type Draft struct {
	BrewingMethod   enums.BrewingMethod   `json:"brewing_method"`
	Origin          enums.Origin          `json:"origin"`
	RoastLevel      enums.RoastLevel      `json:"roast_level"`
	GrindSize       enums.GrindSize       `json:"grind_size"`
	BlendComponents types.BlendComponents `json:"blend_components"`
	QuantityGrams   int                   `json:"quantity_grams"`
	Name            string                `json:"name"`
	Step            int                   `json:"step"`
	LeftFirstStep   bool                  `json:"left_first_step"`
	SavedBlendID    *uuid.UUID            `json:"saved_blend_id,omitempty"`
}

func NewDraft() Draft {
	return Draft{
		BrewingMethod:   enums.BrewingMethodEspresso,
		Origin:          enums.OriginEthiopian,
		RoastLevel:      enums.RoastLevelMedium,
		GrindSize:       enums.GrindSizeFine,
		BlendComponents: types.BlendComponents{enums.OriginEthiopian.String(): 100},
		QuantityGrams:   DefaultQuantityGrams,
		Step:            FirstStep,
	}
}

// ShouldPersist reports whether the draft carries enough input to keep.
func (d Draft) ShouldPersist() bool {
	return strings.TrimSpace(d.Name) != "" || d.LeftFirstStep || d.Step > FirstStep
}

// CreateRequest converts the draft into the blend repository payload.
func (d Draft) CreateRequest() blends.CreateBlendRequest {
	components := make(types.BlendComponents, len(d.BlendComponents))
	for k, v := range d.BlendComponents {
		components[k] = v
	}
	return blends.CreateBlendRequest{
		Name:            strings.TrimSpace(d.Name),
		Origin:          d.Origin.String(),
		RoastLevel:      d.RoastLevel.String(),
		GrindSize:       d.GrindSize.String(),
		BlendComponents: components,
		Quantity:        d.QuantityGrams,
	}
}

type ActionKind string

const (
	ActionSetBrewingMethod ActionKind = "set_brewing_method"
	ActionSetOrigin        ActionKind = "set_origin"
	ActionSetRoastLevel    ActionKind = "set_roast_level"
	ActionSetGrindSize     ActionKind = "set_grind_size"
	ActionSetComponents    ActionKind = "set_blend_components"
	ActionSetQuantity      ActionKind = "set_quantity"
	ActionSetName          ActionKind = "set_name"
	ActionNext             ActionKind = "next"
	ActionBack             ActionKind = "back"
	ActionGoTo             ActionKind = "go_to_step"
)

// Action is one wizard event. Only the field matching Kind is read.
type Action struct {
	Kind       ActionKind
	Value      string
	Components types.BlendComponents
	Number     int
}

func SetBrewingMethod(v string) Action { return Action{Kind: ActionSetBrewingMethod, Value: v} }
func SetOrigin(v string) Action        { return Action{Kind: ActionSetOrigin, Value: v} }
func SetRoastLevel(v string) Action    { return Action{Kind: ActionSetRoastLevel, Value: v} }
func SetGrindSize(v string) Action     { return Action{Kind: ActionSetGrindSize, Value: v} }
func SetName(v string) Action          { return Action{Kind: ActionSetName, Value: v} }
func SetQuantity(grams int) Action     { return Action{Kind: ActionSetQuantity, Number: grams} }
func Next() Action                     { return Action{Kind: ActionNext} }
func Back() Action                     { return Action{Kind: ActionBack} }
func GoTo(step int) Action             { return Action{Kind: ActionGoTo, Number: step} }

func SetComponents(c types.BlendComponents) Action {
	return Action{Kind: ActionSetComponents, Components: c}
}

// Reduce applies action to d. On error the returned draft is d unchanged.
func Reduce(d Draft, action Action) (Draft, error) {
	next := d
	switch action.Kind {
	case ActionSetBrewingMethod:
		method, err := enums.ParseBrewingMethod(strings.TrimSpace(action.Value))
		if err != nil {
			return d, invalid(err)
		}
		if method != d.BrewingMethod && d.Step == StepBrewingMethod && !d.LeftFirstStep {
			next.GrindSize = GrindFor(method)
		}
		next.BrewingMethod = method
	case ActionSetOrigin:
		origin, err := enums.ParseOrigin(strings.TrimSpace(action.Value))
		if err != nil {
			return d, invalid(err)
		}
		next.Origin = origin
		if len(d.BlendComponents) <= 1 {
			next.BlendComponents = types.BlendComponents{origin.String(): 100}
		}
	case ActionSetRoastLevel:
		roast, err := enums.ParseRoastLevel(strings.TrimSpace(action.Value))
		if err != nil {
			return d, invalid(err)
		}
		next.RoastLevel = roast
	case ActionSetGrindSize:
		grind, err := enums.ParseGrindSize(strings.TrimSpace(action.Value))
		if err != nil {
			return d, invalid(err)
		}
		next.GrindSize = grind
	case ActionSetComponents:
		if err := blends.ValidateComponents(action.Components); err != nil {
			return d, invalid(err)
		}
		components := make(types.BlendComponents, len(action.Components))
		for k, v := range action.Components {
			components[k] = v
		}
		next.BlendComponents = components
	case ActionSetQuantity:
		if err := blends.ValidateQuantity(action.Number); err != nil {
			return d, invalid(err)
		}
		next.QuantityGrams = action.Number
	case ActionSetName:
		next.Name = action.Value
	case ActionNext:
		next.Step = clampStep(d.Step + 1)
	case ActionBack:
		next.Step = clampStep(d.Step - 1)
	case ActionGoTo:
		next.Step = clampStep(action.Number)
	default:
		return d, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown wizard action %q", action.Kind))
	}
	if next.Step > StepBrewingMethod {
		next.LeftFirstStep = true
	}
	return next, nil
}

func clampStep(step int) int {
	if step < FirstStep {
		return FirstStep
	}
	if step > LastStep {
		return LastStep
	}
	return step
}

func invalid(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
}
