package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"hirepal/internal/candidate"
	"hirepal/internal/domain"
	"hirepal/internal/intent"
	"hirepal/internal/logger"
	"hirepal/internal/session"
)

const (
	defaultMaxQuestion       = 1000
	defaultContextChars      = 1200
	defaultRetrievalTimeout  = 15 * time.Second
	defaultGenerationTimeout = 60 * time.Second
	questionLogChars         = 120
)

// Stage is a step of the response pipeline.
type Stage string

const (
	StageRetrieving  Stage = "retrieving"
	StageClassifying Stage = "classifying"
	StageAggregating Stage = "aggregating"
	StageGenerating  Stage = "generating"
	StageRecording   Stage = "recording"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// DocumentStore returns scored chunks for a question, best first.
type DocumentStore interface {
	Retrieve(ctx context.Context, question string) ([]domain.RetrievedChunk, error)
}

// LLMClient is the response model. It returns the raw JSON answer object.
type LLMClient interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// Moderator flags questions that must not reach retrieval.
type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Dependencies are the collaborators of AskService. Moderator is optional;
// Classifier and Aggregator fall back to their defaults when nil.
type Dependencies struct {
	Store      DocumentStore
	Model      LLMClient
	Moderator  Moderator
	Sessions   session.Registry
	Classifier *intent.Classifier
	Aggregator *candidate.Aggregator
	Logger     *zap.Logger
}

type Options struct {
	MaxQuestionLength int
	ContextChars      int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

// AskService runs the response pipeline. Turns of one session are processed
// one at a time from history read to history append.
type AskService struct {
	store      DocumentStore
	model      LLMClient
	moderator  Moderator
	sessions   session.Registry
	classifier *intent.Classifier
	aggregator *candidate.Aggregator
	log        *zap.Logger
	locks      *session.Locks
	opts       Options
}

type AskInput struct {
	SessionID string
	Question  string
}

func NewAskService(deps Dependencies, opts Options) (*AskService, error) {
	if deps.Store == nil {
		return nil, errors.New("usecase: document store must not be nil")
	}
	if deps.Model == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if deps.Sessions == nil {
		return nil, errors.New("usecase: session registry must not be nil")
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.Default()
	}
	if deps.Aggregator == nil {
		deps.Aggregator = candidate.NewAggregator(candidate.Options{})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.MaxQuestionLength <= 0 {
		opts.MaxQuestionLength = defaultMaxQuestion
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = defaultContextChars
	}
	if opts.RetrievalTimeout <= 0 {
		opts.RetrievalTimeout = defaultRetrievalTimeout
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = defaultGenerationTimeout
	}
	return &AskService{
		store:      deps.Store,
		model:      deps.Model,
		moderator:  deps.Moderator,
		sessions:   deps.Sessions,
		classifier: deps.Classifier,
		aggregator: deps.Aggregator,
		log:        deps.Logger.Named("pipeline"),
		locks:      session.NewLocks(),
		opts:       opts,
	}, nil
}

// NewSession registers an empty session and returns its id.
func (s *AskService) NewSession(ctx context.Context) (string, error) {
	id, err := s.sessions.Create(ctx)
	if err != nil {
		return "", newError(ErrorInternal, "session_create_error", err)
	}
	s.log.Debug("session created", zap.String("session_id", id))
	return id, nil
}

// EndSession expires a session. Unknown ids yield ErrorSessionNotFound.
func (s *AskService) EndSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.sessions.Expire(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return newError(ErrorSessionNotFound, "unknown_session", err)
		}
		return newError(ErrorInternal, "session_expire_error", err)
	}
	s.log.Debug("session expired", zap.String("session_id", sessionID))
	return nil
}

// Ask answers one recruiter question. Only invalid input and unknown sessions
// are returned as errors; every other failure becomes an error Answer and the
// turn is not recorded.
func (s *AskService) Ask(ctx context.Context, in AskInput) (domain.Answer, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return domain.Answer{}, newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return domain.Answer{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if utf8.RuneCountInString(question) > s.opts.MaxQuestionLength {
		return domain.Answer{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}

	log := s.log.With(zap.String("session_id", sessionID))

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	history, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.Answer{}, newError(ErrorSessionNotFound, "unknown_session", err)
		}
		return s.fail(log, StageRetrieving, newError(ErrorInternal, "history_read_error", err)), nil
	}
	log.Debug("question received",
		zap.String("question", logger.TruncateForLog(question, questionLogChars)),
		zap.Int("history_turns", len(history)),
	)

	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, question)
		if err != nil {
			return s.fail(log, StageRetrieving, upstreamError(err, ErrorInternal, "moderation_error")), nil
		}
		if flagged {
			log.Info("question flagged by moderation")
			return domain.TextAnswer(msgModerated), nil
		}
	}

	log.Debug("stage", zap.String("stage", string(StageRetrieving)))
	chunks, err := s.retrieve(ctx, question)
	if err != nil {
		return s.fail(log, StageRetrieving, upstreamError(err, ErrorRetrieval, "retrieval_error")), nil
	}

	log.Debug("stage", zap.String("stage", string(StageClassifying)), zap.Int("chunks", len(chunks)))
	decision := s.classifier.Decide(question, len(chunks))
	log.Debug("intent decided",
		zap.Bool("surface", decision.SurfaceCandidates),
		zap.String("reason", string(decision.Reason)),
		zap.String("matched", decision.Matched),
	)

	var derived []domain.Candidate
	surface := decision.SurfaceCandidates
	if surface {
		log.Debug("stage", zap.String("stage", string(StageAggregating)))
		derived = s.aggregator.Build(chunks)
		if len(derived) == 0 {
			anomaly := newError(ErrorAggregation, "no_valid_sources", nil)
			log.Warn("degrading to text answer", zap.String("code", string(anomaly.Code)), zap.String("reason", anomaly.Reason))
			surface = false
		}
	}

	log.Debug("stage", zap.String("stage", string(StageGenerating)))
	raw, err := s.generate(ctx, buildPromptMessages(promptInput{
		question:     question,
		history:      history,
		chunks:       chunks,
		candidates:   derived,
		surface:      surface,
		contextChars: s.opts.ContextChars,
	}))
	if err != nil {
		return s.fail(log, StageGenerating, upstreamError(err, ErrorGeneration, "model_error")), nil
	}
	out, err := parseModelAnswer(raw)
	if err != nil {
		return s.fail(log, StageGenerating, newError(ErrorGeneration, "malformed_model_output", err)), nil
	}

	answer := domain.TextAnswer(out.Reply)
	if surface {
		cands, unmatched := reconcile(derived, out.Candidates, s.aggregator.ExcerptChars())
		if unmatched > 0 {
			log.Warn("dropped model candidates without evidence", zap.Int("count", unmatched))
		}
		answer = domain.CandidateAnswer(out.Reply, cands)
	} else if len(out.Candidates) > 0 {
		log.Debug("ignored model candidates on a text turn", zap.Int("count", len(out.Candidates)))
	}

	log.Debug("stage", zap.String("stage", string(StageRecording)))
	stored, err := encodeAssistantTurn(answer)
	if err != nil {
		return s.fail(log, StageRecording, newError(ErrorInternal, "encode_turn_error", err)), nil
	}
	if err := s.sessions.Append(ctx, sessionID, domain.UserTurn(question), domain.AssistantTurn(stored)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return domain.Answer{}, newError(ErrorSessionNotFound, "session_expired", err)
		}
		return s.fail(log, StageRecording, newError(ErrorInternal, "history_write_error", err)), nil
	}

	log.Debug("stage",
		zap.String("stage", string(StageDone)),
		zap.String("kind", string(answer.Kind)),
		zap.Int("candidates", len(answer.Candidates)),
	)
	return answer, nil
}

func (s *AskService) retrieve(ctx context.Context, question string) ([]domain.RetrievedChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RetrievalTimeout)
	defer cancel()
	return s.store.Retrieve(ctx, question)
}

func (s *AskService) generate(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerationTimeout)
	defer cancel()
	return s.model.Chat(ctx, messages)
}

func (s *AskService) fail(log *zap.Logger, stage Stage, err *Error) domain.Answer {
	fields := []zap.Field{
		zap.String("stage", string(StageFailed)),
		zap.String("failed_at", string(stage)),
		zap.String("code", string(err.Code)),
		zap.String("reason", err.Reason),
	}
	if err.Err != nil {
		fields = append(fields, zap.Error(err.Err))
	}
	if err.Code == ErrorInternal {
		log.Error("pipeline failed", fields...)
	} else {
		log.Warn("pipeline failed", fields...)
	}
	return domain.ErrorAnswer(userMessage(err.Code))
}

// upstreamError classifies a collaborator failure. HTTP 429 becomes
// ErrorRateLimited; deadline overruns keep code but get a timeout reason.
func upstreamError(err error, code ErrorCode, reason string) *Error {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		return newError(ErrorRateLimited, reason+"_rate_limited", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(code, reason+"_timeout", err)
	}
	return newError(code, reason, err)
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
