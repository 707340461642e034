package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/meeyouu/skiniveAPI/internal/imageprocessor"
	"github.com/meeyouu/skiniveAPI/internal/logging"
	"github.com/meeyouu/skiniveAPI/internal/relay"
	"github.com/meeyouu/skiniveAPI/internal/render"
	"github.com/meeyouu/skiniveAPI/internal/repository"
)

// Operation names used in logs and metrics.
const (
	OperationValidate = "validate"
	OperationPredict  = "predict"
	OperationClasses  = "get_disease_classes"
)

// Messages shown when an action is attempted before its inputs are ready.
const (
	MissingTokenMessage = "Please provide an authorization token in the sidebar."
	MissingImageMessage = "Please upload an image first."
)

// ErrNoImage is returned by Preview when nothing has been uploaded.
var ErrNoImage = errors.New("no image uploaded")

// Relay defines the API calls needed by the dashboard.
type Relay interface {
	Validate(ctx context.Context, cfg relay.Config, img *imageprocessor.Image) (relay.Response, error)
	Predict(ctx context.Context, cfg relay.Config, img *imageprocessor.Image, lang string) (relay.Response, error)
	GetDiseaseClasses(ctx context.Context, cfg relay.Config) (relay.Response, error)
}

// Warning reports a missing precondition. No request was sent.
type Warning struct {
	Message string
	Err     error
}

func (w *Warning) Error() string {
	return w.Message
}

func (w *Warning) Unwrap() error {
	return w.Err
}

// Dashboard runs the actions behind the dashboard buttons for one session
// at a time.
type Dashboard struct {
	sessions repository.SessionRepository
	relay    Relay
	logger   *zap.Logger
	metrics  *metricsRecorder
}

// NewDashboard constructs a new use case instance.
func NewDashboard(sessions repository.SessionRepository, client Relay, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		sessions: sessions,
		relay:    client,
		logger:   logger.Named("dashboard_usecase"),
		metrics:  newMetricsRecorder(),
	}
}

// State returns the current configuration and image of the session.
func (d *Dashboard) State(ctx context.Context, sessionID string) (*repository.SessionState, error) {
	state, err := d.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, logging.EnsureOperationError("usecase.load_session", sessionID, err)
	}
	return state, nil
}

// UpdateConfig replaces the sidebar configuration of the session.
func (d *Dashboard) UpdateConfig(ctx context.Context, sessionID string, cfg relay.Config) (*repository.SessionState, error) {
	state, err := d.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Config = cfg
	if err := d.save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Upload replaces the image of the session.
func (d *Dashboard) Upload(ctx context.Context, sessionID string, img *imageprocessor.Image) (*repository.SessionState, error) {
	state, err := d.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Image = img
	if err := d.save(ctx, sessionID, state); err != nil {
		return nil, err
	}
	logging.WithOperation(d.logger, "usecase.upload", sessionID).Info("image uploaded",
		zap.String("name", img.Name),
		zap.String("media_type", img.MediaType),
		zap.Int("size", len(img.Data)),
	)
	return state, nil
}

// Validate sends the session image to the validate endpoint.
func (d *Dashboard) Validate(ctx context.Context, sessionID string) (*render.View, error) {
	return d.run(ctx, sessionID, OperationValidate, true, func(state *repository.SessionState) (relay.Response, error) {
		return d.relay.Validate(ctx, state.Config, state.Image)
	}, render.Validation)
}

// Predict sends the session image to the predict endpoint. lang overrides
// the response language when non-empty.
func (d *Dashboard) Predict(ctx context.Context, sessionID, lang string) (*render.View, error) {
	return d.run(ctx, sessionID, OperationPredict, true, func(state *repository.SessionState) (relay.Response, error) {
		return d.relay.Predict(ctx, state.Config, state.Image, lang)
	}, render.Prediction)
}

// GetDiseaseClasses lists the disease classes known to the API.
func (d *Dashboard) GetDiseaseClasses(ctx context.Context, sessionID string) (*render.View, error) {
	return d.run(ctx, sessionID, OperationClasses, false, func(state *repository.SessionState) (relay.Response, error) {
		return d.relay.GetDiseaseClasses(ctx, state.Config)
	}, render.DiseaseClasses)
}

// Preview returns a thumbnail of the session image.
func (d *Dashboard) Preview(ctx context.Context, sessionID string, maxWidth uint) ([]byte, string, error) {
	state, err := d.State(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if !state.HasImage() {
		return nil, "", ErrNoImage
	}
	return imageprocessor.Thumbnail(state.Image, maxWidth)
}

func (d *Dashboard) run(
	ctx context.Context,
	sessionID, operation string,
	needImage bool,
	call func(*repository.SessionState) (relay.Response, error),
	build func(relay.Response) render.View,
) (*render.View, error) {
	opLogger := logging.WithOperation(d.logger, "usecase."+operation, sessionID)

	state, err := d.State(ctx, sessionID)
	if err != nil {
		opLogger.Error("failed to load session", zap.Error(err))
		return nil, err
	}

	if warning := checkPreconditions(state, needImage); warning != nil {
		d.metrics.recordWarning(operation)
		opLogger.Info("action skipped", zap.String("reason", warning.Message))
		return nil, warning
	}

	started := time.Now()
	resp, err := call(state)
	if err != nil {
		if errors.Is(err, relay.ErrMissingToken) || errors.Is(err, relay.ErrMissingImage) {
			d.metrics.recordWarning(operation)
			return nil, warningFor(err)
		}
		return nil, logging.NewOperationError("usecase."+operation, sessionID, err)
	}
	latency := time.Since(started)

	view := build(resp)
	d.metrics.recordCall(operation, latency, view.Failed())
	if view.Failed() {
		opLogger.Warn("api reported an error", zap.String("error", view.Error), zap.Duration("latency", latency))
	} else {
		opLogger.Info("api call succeeded", zap.Duration("latency", latency))
	}
	return &view, nil
}

func (d *Dashboard) save(ctx context.Context, sessionID string, state *repository.SessionState) error {
	if err := d.sessions.Save(ctx, sessionID, state); err != nil {
		wrapped := logging.EnsureOperationError("usecase.save_session", sessionID, err)
		logging.WithOperation(d.logger, "usecase.save_session", sessionID).Error("failed to save session", zap.Error(wrapped))
		return wrapped
	}
	return nil
}

func checkPreconditions(state *repository.SessionState, needImage bool) *Warning {
	if state.Config.AuthToken == "" {
		return warningFor(relay.ErrMissingToken)
	}
	if needImage && !state.HasImage() {
		return warningFor(relay.ErrMissingImage)
	}
	return nil
}

func warningFor(err error) *Warning {
	if errors.Is(err, relay.ErrMissingToken) {
		return &Warning{Message: MissingTokenMessage, Err: err}
	}
	return &Warning{Message: MissingImageMessage, Err: err}
}
