package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"raincheck/internal/types"
)

// maxArtifactSize bounds how much of an artifact body is read into memory.
const maxArtifactSize = 64 << 20

// compressedSuffix marks zstd-compressed artifacts.
const compressedSuffix = ".zst"

// Artifact is the on-disk form of one stadium model.
type Artifact struct {
	Stadium     string         `json:"stadium"`
	ModelType   string         `json:"model_type"`
	FeatureCols []string       `json:"feature_cols"`
	Classifier  ClassifierSpec `json:"classifier"`
}

// ClassifierSpec is the serialized classifier. Which fields are meaningful
// depends on Kind.
type ClassifierSpec struct {
	Kind         string    `json:"kind"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	BaseScore    float64   `json:"base_score,omitempty"`
	Trees        []Tree    `json:"trees,omitempty"`
}

// decoderPool provides reusable zstd decoders to avoid repeated allocations.
var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			// This should never fail with nil input and default options.
			panic(fmt.Sprintf("models: creating zstd decoder: %v", err))
		}
		return d
	},
}

func decompressZstd(data []byte) ([]byte, error) {
	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

// IsCompressed reports whether a locator names a zstd-compressed artifact.
func IsCompressed(locator string) bool {
	return strings.HasSuffix(locator, compressedSuffix)
}

// ReadArtifact reads, optionally decompresses, decodes and validates an
// artifact body.
func ReadArtifact(r io.Reader, compressed bool) (*Artifact, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxArtifactSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	if len(raw) > maxArtifactSize {
		return nil, fmt.Errorf("artifact exceeds %d bytes", maxArtifactSize)
	}
	if compressed {
		if raw, err = decompressZstd(raw); err != nil {
			return nil, err
		}
	}
	return DecodeArtifact(raw)
}

// DecodeArtifact parses and validates an uncompressed JSON artifact.
func DecodeArtifact(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Validate checks the feature columns and the classifier shape.
func (a *Artifact) Validate() error {
	if len(a.FeatureCols) == 0 {
		return fmt.Errorf("artifact has no feature columns")
	}
	seen := make(map[string]struct{}, len(a.FeatureCols))
	for _, c := range a.FeatureCols {
		if !types.IsFeatureColumn(c) {
			return fmt.Errorf("unknown feature column %q", c)
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate feature column %q", c)
		}
		seen[c] = struct{}{}
	}
	_, err := a.Classifier.Build(len(a.FeatureCols))
	return err
}

// Build constructs the Classifier for numFeatures input columns.
func (s ClassifierSpec) Build(numFeatures int) (Classifier, error) {
	switch s.Kind {
	case KindLogistic:
		if len(s.Coefficients) != numFeatures {
			return nil, fmt.Errorf("logistic: %d coefficients for %d feature columns", len(s.Coefficients), numFeatures)
		}
		for i, c := range s.Coefficients {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return nil, fmt.Errorf("logistic: coefficient %d is not finite", i)
			}
		}
		coef := make([]float64, numFeatures)
		copy(coef, s.Coefficients)
		return &Logistic{Coefficients: coef, Intercept: s.Intercept}, nil

	case KindBoostedTrees, KindRandomForest:
		if len(s.Trees) == 0 {
			return nil, fmt.Errorf("%s: no trees", s.Kind)
		}
		for i, t := range s.Trees {
			if err := t.validate(numFeatures); err != nil {
				return nil, fmt.Errorf("%s: tree %d: %w", s.Kind, i, err)
			}
		}
		if s.Kind == KindBoostedTrees {
			return &BoostedTrees{BaseScore: s.BaseScore, Trees: s.Trees, NumFeatures: numFeatures}, nil
		}
		for i, t := range s.Trees {
			for j, n := range t {
				if n.Left == -1 && (n.Leaf < 0 || n.Leaf > 1) {
					return nil, fmt.Errorf("random_forest: tree %d node %d: leaf probability %v outside [0,1]", i, j, n.Leaf)
				}
			}
		}
		return &RandomForest{Trees: s.Trees, NumFeatures: numFeatures}, nil

	case "":
		return nil, fmt.Errorf("classifier kind is required")
	default:
		return nil, fmt.Errorf("unsupported classifier kind %q", s.Kind)
	}
}
