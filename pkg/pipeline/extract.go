package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wildseas/finprint/pkg/cache"
	"github.com/wildseas/finprint/pkg/contour"
	"github.com/wildseas/finprint/pkg/curv"
	"github.com/wildseas/finprint/pkg/field"
	"github.com/wildseas/finprint/pkg/geom"
)

// resultStage is the cache stage name for extraction results.
const resultStage = "result"

// ExtractorOption configures an [Extractor].
type ExtractorOption func(*Extractor)

// WithCache reuses extraction results across runs for subjects that
// carry their raw bytes.
func WithCache(c cache.Cache) ExtractorOption {
	return func(e *Extractor) { e.cache = c }
}

// WithLogger sets the extractor's logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) { e.log = l }
}

// Extractor runs the per-subject descriptor pipeline.
type Extractor struct {
	cfg    Config
	cache  cache.Cache
	log    *slog.Logger
	cfgKey string
}

// NewExtractor validates the configuration and returns a ready
// extractor. Configuration errors fail here, before any subject is
// touched.
func NewExtractor(cfg Config, opts ...ExtractorOption) (*Extractor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key, err := cfg.Fingerprint()
	if err != nil {
		return nil, err
	}
	e := &Extractor{cfg: cfg, cfgKey: key}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// Config returns the validated configuration with defaults applied.
func (e *Extractor) Config() Config { return e.cfg }

// Extract runs every stage for one subject. A stage that finds nothing
// usable returns a Result tagged with the stage and reason; an error
// return means an internal defect (broken invariant), not a property of
// the photograph.
func (e *Extractor) Extract(ctx context.Context, sub Subject) (Result, error) {
	key := e.subjectKey(sub)
	if key != "" {
		if res, ok := e.cached(ctx, key); ok {
			e.log.Debug("extract cache hit", "subject", sub.ID)
			res.Subject = sub.ID
			return res, nil
		}
	}

	res := e.extract(sub)
	if !res.OK() {
		e.log.Debug("subject dropped",
			"subject", sub.ID, "stage", res.FailedStage, "reason", res.Reason)
	}
	if key != "" {
		if err := e.store(ctx, key, res); err != nil {
			e.log.Warn("extract cache store failed", "subject", sub.ID, "error", err)
		}
	}
	return res, nil
}

func (e *Extractor) extract(sub Subject) Result {
	cfg := &e.cfg
	if sub.Image == nil {
		return fail(sub.ID, StagePreprocess, "missing image")
	}
	if sub.Mask == nil {
		return fail(sub.ID, StagePreprocess, "missing mask")
	}
	if sub.Mask.Width() != cfg.Preprocess.Width || sub.Mask.Height() != cfg.Preprocess.Height {
		return fail(sub.ID, StagePreprocess, fmt.Sprintf(
			"mask frame %dx%d, want %dx%d",
			sub.Mask.Width(), sub.Mask.Height(),
			cfg.Preprocess.Width, cfg.Preprocess.Height))
	}

	img := sub.Image
	if sub.RightSide {
		img = field.FlipH(img)
	}
	_, pre := field.CenterPad(img, cfg.Preprocess.Width, cfg.Preprocess.Height)

	start, end, ok := contour.FindKeypoints(sub.Mask, nil, cfg.Keypoints)
	if !ok {
		return fail(sub.ID, StageKeypoints, "no confident anchor pair")
	}

	loc := sub.Localization
	if loc == (geom.Affine{}) {
		loc = geom.Identity()
	}
	refined, refinedMask, _, err := field.RefineLocalization(
		img, sub.Mask, pre, loc,
		cfg.Preprocess.RefineScale, cfg.Preprocess.Width, cfg.Preprocess.Height)
	if err != nil {
		// A singular localization transform is bad input, not a defect
		// in the math downstream.
		return fail(sub.ID, StagePreprocess, err.Error())
	}

	// Anchors were found in the localized frame; the trace runs in the
	// upscaled one. Floor after scaling, matching the mask warp.
	s := float64(cfg.Preprocess.RefineScale)
	startUp := image.Pt(int(math.Floor(float64(start.X)*s)), int(math.Floor(float64(start.Y)*s)))
	endUp := image.Pt(int(math.Floor(float64(end.X)*s)), int(math.Floor(float64(end.Y)*s)))

	outline := contour.Trace(field.FromImage(refined), refinedMask, startUp, endUp, cfg.Trace)
	if len(outline) == 0 {
		return fail(sub.ID, StageOutline, "no boundary path between anchors")
	}

	_, trailing, ok := contour.SeparateEdges(outline)
	if !ok {
		return fail(sub.ID, StageSplit, "no direction change along outline")
	}

	curvMatrix := curv.Oriented(trailing, cfg.Curvature.Scales, cfg.Curvature.TransposeDims)
	if curvMatrix == nil {
		return fail(sub.ID, StageCurvature, "degenerate trailing edge")
	}

	descs, err := curv.Descriptors(curvMatrix, cfg.Descriptor)
	if err != nil {
		return fail(sub.ID, StageInternal, err.Error())
	}
	if descs == nil {
		return fail(sub.ID, StageDescriptors, "no descriptor spans")
	}

	groups := make(map[string][][]float32, len(cfg.Curvature.Scales)+len(cfg.Gauss))
	for i, scale := range cfg.Curvature.Scales {
		groups[ScaleKey(scale)] = descs[i]
	}

	if len(cfg.Gauss) > 0 {
		gdescs, err := curv.DiffOfGauss(trailing, cfg.Gauss, cfg.Descriptor)
		if err != nil {
			return fail(sub.ID, StageInternal, err.Error())
		}
		// A featureless band-pass just skips the variant; the curvature
		// descriptors above already carried the subject.
		if gdescs != nil {
			for i, p := range cfg.Gauss {
				groups[GaussKey(p)] = gdescs[i]
			}
		}
	}

	return Result{Subject: sub.ID, Descriptors: groups}
}

// ---------------------------------------------------------------------------
// result caching
// ---------------------------------------------------------------------------

func (e *Extractor) subjectKey(sub Subject) string {
	if e.cache == nil || len(sub.Raw) == 0 || sub.Mask == nil {
		return ""
	}
	view := []byte{0}
	if sub.RightSide {
		view[0] = 1
	}
	return cache.ContentKey([]byte(e.cfgKey), sub.Raw, maskBytes(sub.Mask), view)
}

func maskBytes(f *field.Field) []byte {
	w, h := f.Width(), f.Height()
	b := make([]byte, 8+4*w*h)
	binary.LittleEndian.PutUint32(b[0:], uint32(w))
	binary.LittleEndian.PutUint32(b[4:], uint32(h))
	pos := 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint32(b[pos:], math.Float32bits(f.At(x, y)))
			pos += 4
		}
	}
	return b
}

func (e *Extractor) cached(ctx context.Context, key string) (Result, bool) {
	blob, err := e.cache.Get(ctx, resultStage, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.log.Warn("extract cache read failed", "error", err)
		}
		return Result{}, false
	}
	var res Result
	if err := msgpack.Unmarshal(blob, &res); err != nil {
		e.log.Warn("extract cache entry corrupt", "error", err)
		return Result{}, false
	}
	return res, true
}

func (e *Extractor) store(ctx context.Context, key string, res Result) error {
	blob, err := msgpack.Marshal(&res)
	if err != nil {
		return err
	}
	return e.cache.Put(ctx, resultStage, key, blob)
}
