package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"github.com/scrypster/kinstory/pkg/types"
)

// DefaultNERModel is the token classification model used when none is configured.
const DefaultNERModel = "KnightsAnalytics/distilbert-NER"

// HugotConfig configures a HugotExtractor.
type HugotConfig struct {
	// Model is the Hugging Face model name (default: DefaultNERModel).
	Model string

	// ModelDir is where models are downloaded (default: ./models).
	ModelDir string

	// OnnxFile is the ONNX file inside the model repository (default: model.onnx).
	OnnxFile string
}

type nerRunner interface {
	RunPipeline(inputs []string) (*pipelines.TokenClassificationOutput, error)
}

// HugotExtractor runs a NER model in process with the pure Go backend.
type HugotExtractor struct {
	session *hugot.Session
	ner     nerRunner
}

// NewHugotExtractor downloads the model when missing and builds the pipeline.
func NewHugotExtractor(cfg HugotConfig) (*HugotExtractor, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultNERModel
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "./models"
	}
	if cfg.OnnxFile == "" {
		cfg.OnnxFile = "model.onnx"
	}

	modelPath, err := prepareModel(cfg)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	ner, err := hugot.NewPipeline(session, hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "kinstory-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return &HugotExtractor{session: session, ner: ner}, nil
}

func prepareModel(cfg HugotConfig) (string, error) {
	modelPath := filepath.Join(cfg.ModelDir, strings.ReplaceAll(cfg.Model, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model: %w", err)
	}

	if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = cfg.OnnxFile
	path, err := hugot.DownloadModel(cfg.Model, cfg.ModelDir, opts)
	if err != nil {
		return "", fmt.Errorf("failed to download model %s: %w", cfg.Model, err)
	}
	return path, nil
}

// Extract implements Extractor. The pipeline is synchronous; ctx is only
// checked before it runs.
func (h *HugotExtractor) Extract(ctx context.Context, text string) ([]types.Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := h.ner.RunPipeline([]string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to run NER: %w", err)
	}
	if len(out.Entities) == 0 {
		return nil, nil
	}

	mentions := make([]types.Mention, 0, len(out.Entities[0]))
	for _, ent := range out.Entities[0] {
		word := strings.TrimSpace(ent.Word)
		if word == "" {
			continue
		}
		mentions = append(mentions, types.Mention{
			Text:  word,
			Label: normalizeLabel(ent.Entity),
			Score: float32(ent.Score),
		})
	}
	return mentions, nil
}

// Close releases the hugot session.
func (h *HugotExtractor) Close() error {
	if h.session == nil {
		return nil
	}
	return h.session.Destroy()
}
