// internal/infra/imagegen/generate_image_handler.go
package imagegen

import (
	"context"
	"encoding/json"
	"log/slog"

	"job-worker/internal/domain"

	"github.com/go-viper/mapstructure/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HandlerName is reported in result meta for generateImage jobs.
	HandlerName = "job-worker/imagegen"
	// PlaceholderURL stands in for a real generated image.
	PlaceholderURL = "https://example.com/generated.png"
)

// Options are the optional generateImage knobs. They are informational only:
// values that do not decode are left zero and never fail a job.
type Options struct {
	Size  string `mapstructure:"size"`
	Steps int    `mapstructure:"steps"`
	Model string `mapstructure:"model"`
}

type generateImageHandler struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewGenerateImageHandler creates the generateImage handler.
func NewGenerateImageHandler(logger *slog.Logger) domain.JobHandler {
	return &generateImageHandler{
		logger: logger.With("job_type", domain.JobTypeGenerateImage),
		tracer: otel.Tracer("job-worker-imagegen"),
	}
}

func (h *generateImageHandler) Type() domain.JobType { return domain.JobTypeGenerateImage }

func (h *generateImageHandler) Name() string { return HandlerName }

// Validate rejects a missing or empty prompt and nothing else.
func (h *generateImageHandler) Validate(payload domain.Payload) error {
	if !present(payload["prompt"]) {
		return domain.NewMissingField("prompt")
	}
	return nil
}

// Execute echoes the prompt next to a placeholder image URL.
func (h *generateImageHandler) Execute(ctx context.Context, payload domain.Payload) (map[string]any, error) {
	_, span := h.tracer.Start(ctx, "handler.imagegen.Execute")
	defer span.End()

	if err := h.Validate(payload); err != nil {
		span.RecordError(err)
		return nil, err
	}

	opts := h.options(payload)
	span.SetAttributes(
		attribute.String("image.size", opts.Size),
		attribute.Int("image.steps", opts.Steps),
	)
	h.logger.Debug("generating image", "size", opts.Size, "steps", opts.Steps, "model", opts.Model)

	return map[string]any{
		"imageUrl": PlaceholderURL,
		"prompt":   payload["prompt"],
	}, nil
}

// options decodes the optional knobs leniently, keeping whatever fields decode.
func (h *generateImageHandler) options(payload domain.Payload) Options {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return opts
	}
	if err := dec.Decode(map[string]any(payload)); err != nil {
		h.logger.Debug("ignoring undecodable image options", "error", err)
	}
	return opts
}

// present reports whether v counts as given: nil, false, zero numbers and
// empty strings, lists or objects do not.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case bool:
		return x
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
