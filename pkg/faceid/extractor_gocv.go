package faceid

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ExtractorConfig holds model paths and detection settings for the OpenCV
// extractor.
type ExtractorConfig struct {
	// DetectorModel is the YuNet ONNX face detector.
	DetectorModel string `yaml:"detector_model" json:"detector_model"`

	// RecognizerModel is the SFace ONNX face recognizer.
	RecognizerModel string `yaml:"recognizer_model" json:"recognizer_model"`

	// ConfidenceThresh is the minimum detection score (default 0.6).
	ConfidenceThresh float64 `yaml:"confidence_thresh" json:"confidence_thresh"`

	// BrightenBelow boosts frames whose mean brightness (0-255) is under
	// this value. Zero disables the boost.
	BrightenBelow float64 `yaml:"brighten_below" json:"brighten_below"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultExtractorConfig returns production defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		DetectorModel:    "models/face_detection_yunet.onnx",
		RecognizerModel:  "models/face_recognition_sface.onnx",
		ConfidenceThresh: 0.6,
		BrightenBelow:    100,
	}
}

// SFaceExtractor detects faces with YuNet and embeds the best one with
// SFace. Features are L2-normalized so distances fall in [0, 2].
type SFaceExtractor struct {
	cfg    ExtractorConfig
	logger *slog.Logger

	mu         sync.Mutex // OpenCV models are not safe for concurrent use
	detector   gocv.FaceDetectorYN
	recognizer gocv.FaceRecognizerSF
}

// NewSFaceExtractor loads both models.
func NewSFaceExtractor(cfg ExtractorConfig) (*SFaceExtractor, error) {
	for _, path := range []string{cfg.DetectorModel, cfg.RecognizerModel} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", path)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.DetectorModel,
		"",
		image.Pt(320, 320), // updated per frame
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	recognizer := gocv.NewFaceRecognizerSF(cfg.RecognizerModel, "")

	return &SFaceExtractor{
		cfg:        cfg,
		logger:     logger.With("component", "faceid.sface"),
		detector:   detector,
		recognizer: recognizer,
	}, nil
}

// Extract returns the embedding of the best face in the JPEG, or ErrNoFace.
func (x *SFaceExtractor) Extract(ctx context.Context, jpeg []byte) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	src := img
	if x.cfg.BrightenBelow > 0 {
		mean := img.Mean()
		brightness := (mean.Val1 + mean.Val2 + mean.Val3) / 3
		if brightness < x.cfg.BrightenBelow {
			boosted := gocv.NewMat()
			defer boosted.Close()
			gocv.ConvertScaleAbs(img, &boosted, 3.0, 100)
			x.logger.Debug("boosted dark frame", "brightness", brightness)
			src = boosted
		}
	}

	x.detector.SetInputSize(image.Pt(src.Cols(), src.Rows()))
	faces := gocv.NewMat()
	defer faces.Close()
	x.detector.Detect(src, &faces)

	// YuNet rows: 0-3 box (pixels), 4-13 landmarks, 14 score.
	w, h := float64(src.Cols()), float64(src.Rows())
	dets := make([]Detection, faces.Rows())
	for r := range dets {
		dets[r] = Detection{
			X:          float64(faces.GetFloatAt(r, 0)) / w,
			Y:          float64(faces.GetFloatAt(r, 1)) / h,
			W:          float64(faces.GetFloatAt(r, 2)) / w,
			H:          float64(faces.GetFloatAt(r, 3)) / h,
			Confidence: float64(faces.GetFloatAt(r, 14)),
		}
	}
	best := SelectBest(dets)
	if best < 0 {
		return nil, ErrNoFace
	}

	row := faces.RowRange(best, best+1)
	defer row.Close()

	aligned := gocv.NewMat()
	defer aligned.Close()
	x.recognizer.AlignCrop(src, row, &aligned)

	feature := gocv.NewMat()
	defer feature.Close()
	x.recognizer.Feature(aligned, &feature)

	n := feature.Total()
	if n == 0 {
		return nil, ErrNoFace
	}
	emb := make(Embedding, n)
	for i := range emb {
		emb[i] = float64(feature.GetFloatAt(0, i))
	}
	x.logger.Debug("face embedded", "faces", len(dets), "confidence", dets[best].Confidence)
	return Normalize(emb), nil
}

// Close releases both models.
func (x *SFaceExtractor) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.detector.Close()
	x.recognizer.Close()
	return nil
}

var _ Extractor = (*SFaceExtractor)(nil)
