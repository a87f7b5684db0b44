package answers

import (
	"context"
	"fmt"

	"github.com/terra-clan/toolkit-engine/internal/apperr"
	"github.com/terra-clan/toolkit-engine/internal/models"
)

// Definitions resolves toolkit definitions
type Definitions interface {
	DefinitionFor(t models.ToolkitType) (models.ToolkitDefinition, error)
	Require(t models.ToolkitType, c models.Capability) (models.ToolkitDefinition, error)
}

// SessionReader loads a stored answer and its audio sub-records
type SessionReader interface {
	AnswerBySession(ctx context.Context, def models.ToolkitDefinition, userID, sessionID string) (models.Answer, error)
	PlayedAudios(ctx context.Context, scheduleID, sessionID string) ([]models.PlayedAudio, error)
}

// References loads the rows joined onto answers
type References interface {
	GetActivity(ctx context.Context, id string) (*models.Activity, error)
	GetIntensity(ctx context.Context, id string) (*models.Intensity, error)
	GetAlcoholType(ctx context.Context, id string) (*models.AlcoholType, error)
	GetMoodCategory(ctx context.Context, id string) (*models.MoodCategory, error)
	MoodSubCategories(ctx context.Context, categoryID string, ids []string) ([]models.MoodSubCategory, error)
}

// Resolver loads one session's answer and attaches its reference data
type Resolver struct {
	defs    Definitions
	answers SessionReader
	refs    References
}

// NewResolver creates a resolver
func NewResolver(defs Definitions, answers SessionReader, refs References) *Resolver {
	return &Resolver{defs: defs, answers: answers, refs: refs}
}

// Resolve returns the user's answer for sessionID, enriched by toolkit type
func (r *Resolver) Resolve(ctx context.Context, sessionID string, toolkitType models.ToolkitType, userID string) (*models.ResolvedAnswer, error) {
	def, err := r.defs.DefinitionFor(toolkitType)
	if err != nil {
		return nil, err
	}

	answer, err := r.answers.AnswerBySession(ctx, def, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, apperr.NotFound("toolkit_answer_not_found", "no %s answer for session %s", toolkitType, sessionID)
	}

	switch a := answer.(type) {
	case *models.SportAnswer:
		err = r.enrichSport(ctx, a)
	case *models.AlcoholIntakeAnswer:
		a.AlcoholType, err = r.refs.GetAlcoholType(ctx, a.AlcoholTypeID)
	case *models.AudioAnswer:
		a.PlayedAudios, err = r.answers.PlayedAudios(ctx, a.ScheduleID, a.SessionID)
	case *models.MoodAnswer:
		err = r.enrichMood(ctx, a)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s answer: %w", toolkitType, err)
	}

	return &models.ResolvedAnswer{ToolkitType: toolkitType, Answer: answer}, nil
}

func (r *Resolver) enrichSport(ctx context.Context, a *models.SportAnswer) error {
	var err error
	if a.Activity, err = r.refs.GetActivity(ctx, a.ActivityID); err != nil {
		return err
	}
	a.Intensity, err = r.refs.GetIntensity(ctx, a.IntensityID)
	return err
}

// enrichMood attaches the category and only those selected sub-categories
// that belong to it
func (r *Resolver) enrichMood(ctx context.Context, a *models.MoodAnswer) error {
	var err error
	if a.MoodCategory, err = r.refs.GetMoodCategory(ctx, a.MoodCategoryID); err != nil {
		return err
	}
	a.MoodSubCategories, err = r.refs.MoodSubCategories(ctx, a.MoodCategoryID, a.MoodSubCategoryIDs)
	return err
}
