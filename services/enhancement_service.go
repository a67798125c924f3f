package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sahilchouksey/module-enhancer/database"
	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/pipeline"
	"github.com/sahilchouksey/module-enhancer/services/queue"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"gorm.io/datatypes"
)

// ErrEmptyContent is returned for a module with nothing to enhance
var ErrEmptyContent = errors.New("module has no content")

const (
	enhancedMessage  = "Module enhanced and published"
	fallbackMessage  = "Module published with original content"
	fallbackWarningF = "AI enhancement failed (%s); the original content was published unchanged"
)

// ContentGenerator produces the enhanced artifact for one module
type ContentGenerator interface {
	Generate(ctx context.Context, in pipeline.Input) model.EnhancedContent
}

// EnhancementService is the queue's processor: it loads a module, runs the
// content pipeline and writes the result back.
type EnhancementService struct {
	store     database.ModuleStore
	generator ContentGenerator
	log       *logger.Logger
}

// NewEnhancementService creates a new enhancement service
func NewEnhancementService(store database.ModuleStore, generator ContentGenerator, log *logger.Logger) *EnhancementService {
	return &EnhancementService{store: store, generator: generator, log: log}
}

// PrepareRequest loads everything the queue needs to know about a module.
// It returns database.ErrNotFound when the module does not exist and
// ErrEmptyContent when its content is blank.
func (s *EnhancementService) PrepareRequest(ctx context.Context, moduleID uint, instructionOverride string, moduleNumber int) (queue.EnqueueRequest, error) {
	module, err := s.store.GetModule(ctx, moduleID)
	if err != nil {
		return queue.EnqueueRequest{}, err
	}
	if strings.TrimSpace(module.Content) == "" {
		return queue.EnqueueRequest{}, fmt.Errorf("module %d: %w", moduleID, ErrEmptyContent)
	}

	if moduleNumber == 0 {
		moduleNumber = module.ModuleNumber
	}
	req := queue.EnqueueRequest{
		ModuleID:            module.ID,
		Title:               module.Title,
		Content:             module.Content,
		SubjectID:           module.SubjectID,
		InstructionOverride: strings.TrimSpace(instructionOverride),
		ModuleNumber:        moduleNumber,
	}
	req.SubjectName, _, req.ProfessionName = s.subjectContext(ctx, module.SubjectID)
	return req, nil
}

// Process runs one job. Only a missing module is reported as an error; every
// other failure publishes the original content and reports a warning.
func (s *EnhancementService) Process(ctx context.Context, job queue.Job) (*queue.Result, error) {
	log := s.log.With("job_id", job.ID, "module_id", job.ModuleID)

	module, err := s.store.GetModule(ctx, job.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load module for enhancement: %w", err)
	}

	input := s.buildInput(ctx, log, job, module)
	content := s.generate(ctx, log, input)

	if content.Degraded {
		return s.publishOnly(ctx, log, job.ModuleID, content.FallbackReason)
	}

	update, err := enhancedUpdate(content)
	if err != nil {
		return s.publishOnly(ctx, log, job.ModuleID, err.Error())
	}

	updated, err := s.store.UpdateModule(ctx, job.ModuleID, update)
	if err != nil {
		log.Error("Failed to save enhanced module", "error", err)
		return s.publishOnly(ctx, log, job.ModuleID, "saving the enhanced content failed")
	}

	log.Info("Module enhanced",
		"concepts", len(content.KeyConceptsWithVideos),
		"quiz_sets", len(content.GeneratedQuizzes),
		"narration", content.NarrationURL != "",
	)
	return &queue.Result{Success: true, Module: updated, Message: enhancedMessage}, nil
}

// generate runs the pipeline and turns a panic into the fallback artifact
func (s *EnhancementService) generate(ctx context.Context, log *logger.Logger, in pipeline.Input) (out model.EnhancedContent) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Content pipeline panicked", "panic", r)
			out = model.FallbackContent(in.RawContent, fmt.Sprintf("panic: %v", r))
		}
	}()
	return s.generator.Generate(ctx, in)
}

func (s *EnhancementService) buildInput(ctx context.Context, log *logger.Logger, job queue.Job, module *model.Module) pipeline.Input {
	in := pipeline.Input{
		Title:               job.Title,
		RawContent:          job.Content,
		InstructionOverride: job.InstructionOverride,
		SubjectName:         job.SubjectName,
		ProfessionName:      job.ProfessionName,
		ModuleNumber:        job.ModuleNumber,
	}
	if in.Title == "" {
		in.Title = module.Title
	}
	if in.RawContent == "" {
		in.RawContent = module.Content
	}
	if in.ModuleNumber == 0 {
		in.ModuleNumber = module.ModuleNumber
	}

	subjectID := job.SubjectID
	if subjectID == 0 {
		subjectID = module.SubjectID
	}
	name, description, profession := s.subjectContext(ctx, subjectID)
	if in.SubjectName == "" {
		in.SubjectName = name
	}
	if in.ProfessionName == "" {
		in.ProfessionName = profession
	}
	var contextParts []string
	for _, part := range []string{in.SubjectName, description} {
		if part = strings.TrimSpace(part); part != "" {
			contextParts = append(contextParts, part)
		}
	}
	in.SubjectContext = strings.Join(contextParts, ". ")

	if in.InstructionOverride == "" {
		if setting, err := s.store.GetSystemSetting(ctx, model.SettingEnhancementInstructions); err == nil {
			in.InstructionOverride = strings.TrimSpace(setting.Value)
		} else if !errors.Is(err, database.ErrNotFound) {
			log.Warn("Could not read enhancement instructions", "error", err)
		}
	}

	if setting, err := s.store.GetSystemSetting(ctx, model.SettingKeywordLinkLimit); err == nil {
		if limit, convErr := strconv.Atoi(strings.TrimSpace(setting.Value)); convErr == nil && limit >= 0 {
			in.KeywordLinkLimit = &limit
		} else {
			log.Warn("Ignoring invalid keyword link limit setting", "value", setting.Value)
		}
	}

	return in
}

// subjectContext returns the subject name, description and profession name.
// Lookup failures leave the values empty.
func (s *EnhancementService) subjectContext(ctx context.Context, subjectID uint) (string, string, string) {
	if subjectID == 0 {
		return "", "", ""
	}
	subject, err := s.store.GetSubject(ctx, subjectID)
	if err != nil {
		s.log.Debug("Subject lookup failed", "subject_id", subjectID, "error", err)
		return "", "", ""
	}
	if subject.ProfessionID == nil {
		return subject.Name, subject.Description, ""
	}
	profession, err := s.store.GetProfession(ctx, *subject.ProfessionID)
	if err != nil {
		s.log.Debug("Profession lookup failed", "profession_id", *subject.ProfessionID, "error", err)
		return subject.Name, subject.Description, ""
	}
	return subject.Name, subject.Description, profession.Name
}

// publishOnly marks the module published without touching its content
func (s *EnhancementService) publishOnly(ctx context.Context, log *logger.Logger, moduleID uint, reason string) (*queue.Result, error) {
	log.Warn("Publishing module without enhancement", "reason", reason)

	published := true
	module, err := s.store.UpdateModule(ctx, moduleID, database.ModuleUpdate{IsPublished: &published})
	if err != nil {
		return nil, fmt.Errorf("failed to publish module %d: %w", moduleID, err)
	}

	return &queue.Result{
		Success: true,
		Module:  module,
		Message: fallbackMessage,
		Warning: fmt.Sprintf(fallbackWarningF, reason),
	}, nil
}

func enhancedUpdate(content model.EnhancedContent) (database.ModuleUpdate, error) {
	concepts, err := json.Marshal(content.KeyConceptsWithVideos)
	if err != nil {
		return database.ModuleUpdate{}, fmt.Errorf("failed to encode key concepts: %w", err)
	}

	quizzes := content.GeneratedQuizzes
	if quizzes == nil {
		quizzes = []model.QuizSet{}
	}
	quizJSON, err := json.Marshal(quizzes)
	if err != nil {
		return database.ModuleUpdate{}, fmt.Errorf("failed to encode quizzes: %w", err)
	}

	published := true
	update := database.ModuleUpdate{
		Content:          &content.DetailedVersion,
		ConciseContent:   &content.ConciseVersion,
		DetailedContent:  &content.DetailedVersion,
		KeyConceptsData:  datatypes.JSON(concepts),
		GeneratedQuizzes: datatypes.JSON(quizJSON),
		IsPublished:      &published,
	}
	if content.NarrationURL != "" {
		update.NarrationURL = &content.NarrationURL
	}
	return update, nil
}
