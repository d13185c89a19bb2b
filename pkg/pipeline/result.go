package pipeline

import (
	"image"

	"github.com/wildseas/finprint/pkg/field"
	"github.com/wildseas/finprint/pkg/geom"
)

// Stage names the pipeline step at which a subject stopped.
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StageKeypoints   Stage = "keypoints"
	StageOutline     Stage = "outline"
	StageSplit       Stage = "split"
	StageCurvature   Stage = "curvature"
	StageDescriptors Stage = "descriptors"

	// StageCanceled marks subjects never processed because the batch
	// context was canceled.
	StageCanceled Stage = "canceled"

	// StageInternal marks an invariant violation; the error carries the
	// detail and the batch surfaces it.
	StageInternal Stage = "internal"
)

// Subject is one photograph to extract descriptors from.
type Subject struct {
	// ID names the subject within its batch.
	ID string

	// Image is the photograph, cropped to the animal.
	Image image.Image

	// Mask is the segmentation confidence field in the normalized
	// localized frame (PreprocessConfig.Width × Height).
	Mask *field.Field

	// Localization maps the normalized preprocessed frame into the
	// localized frame. The zero value means identity (no localizer
	// crop).
	Localization geom.Affine

	// RightSide flips the photograph so all subjects share one view
	// convention.
	RightSide bool

	// Raw optionally holds the encoded source bytes; when set together
	// with a cache, extraction results are reused across runs.
	Raw []byte
}

// Result is the tagged outcome of extracting one subject. Either
// Descriptors is populated, or FailedStage and Reason record where and
// why the subject dropped out.
type Result struct {
	Subject string `msgpack:"subject"`

	// Descriptors maps descriptor group key (curvature scale or
	// difference-of-Gaussians pair) to unit-norm descriptor rows.
	Descriptors map[string][][]float32 `msgpack:"descriptors"`

	FailedStage Stage  `msgpack:"failed_stage"`
	Reason      string `msgpack:"reason"`
}

// OK reports whether the subject survived every stage.
func (r *Result) OK() bool { return r.FailedStage == "" }

func fail(subject string, stage Stage, reason string) Result {
	return Result{Subject: subject, FailedStage: stage, Reason: reason}
}
