package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jjshay/music-videos-app/internal/beat"
	"github.com/jjshay/music-videos-app/internal/config"
	"github.com/jjshay/music-videos-app/internal/jobstore"
	"github.com/jjshay/music-videos-app/internal/logger"
	"github.com/jjshay/music-videos-app/internal/media"
	"github.com/jjshay/music-videos-app/internal/models"
)

// captionStyles rotates across the three body segments when the caller
// does not pick styles explicitly.
var captionStyles = []string{"fadeSlide", "slideUp", "fade"}

// Orchestrator drives the render state machine for one job:
// AudioExtract → CardRender → SegmentTransform(×3) → BeatSync? →
// Concatenate → Review? → CaptionRender → Composite → Thumbnail? →
// AspectExport? → terminal. Events stream on a channel; exactly one
// terminal event closes it.
type Orchestrator struct {
	cfg      config.Render
	runner   media.Runner
	jobs     *jobstore.Store
	detector *beat.Detector
	assets   *AssetRenderer
	review   ReviewService // nil disables the review stage
}

func NewOrchestrator(cfg config.Render, r media.Runner, jobs *jobstore.Store, assets *AssetRenderer, review ReviewService) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		runner:   r,
		jobs:     jobs,
		detector: beat.NewDetector(r),
		assets:   assets,
		review:   review,
	}
}

// Render runs the full pipeline. The returned channel closes after the
// terminal event.
func (o *Orchestrator) Render(ctx context.Context, job *models.Job, req models.RenderRequest) <-chan models.Event {
	events := make(chan models.Event, 16)
	go func() {
		defer close(events)
		o.run(ctx, job, req, events, false)
	}()
	return events
}

// Preview runs the reduced pipeline: lower resolution and encoding effort,
// no beat sync, no review, no captions, no soundtrack.
func (o *Orchestrator) Preview(ctx context.Context, job *models.Job, req models.RenderRequest) <-chan models.Event {
	events := make(chan models.Event, 16)
	go func() {
		defer close(events)
		o.run(ctx, job, req, events, true)
	}()
	return events
}

type emitter struct {
	events  chan<- models.Event
	last    map[string]int
	stopped bool
}

func newEmitter(events chan<- models.Event) *emitter {
	return &emitter{events: events, last: make(map[string]int)}
}

// progress emits a stage progress event, clamping percent to be monotonic
// within the stage.
func (e *emitter) progress(stage string, percent int, message string) {
	if e.stopped {
		return
	}
	if percent < e.last[stage] {
		percent = e.last[stage]
	}
	if percent > 100 {
		percent = 100
	}
	e.last[stage] = percent
	e.events <- models.Event{Type: models.EventProgress, Stage: stage, Percent: percent, Message: message}
}

func (e *emitter) terminal(ev models.Event) {
	if e.stopped {
		return
	}
	e.stopped = true
	e.events <- ev
}

// step runs one external transform under the per-step timeout.
func (o *Orchestrator) step(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()
	return fn(sctx)
}

func isCancellation(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, req models.RenderRequest, events chan<- models.Event, preview bool) {
	em := newEmitter(events)
	dir := o.jobs.Dir(job.ID)

	fail := func(stage string, err error) {
		status := models.JobStatusFailed
		evType := models.EventError
		if isCancellation(ctx, err) {
			status = models.JobStatusCancelled
			evType = models.EventCancelled
		}
		logger.L().Error("render pipeline halted",
			zap.String("jobID", job.ID), zap.String("stage", stage), zap.Error(err))
		job.Status = status
		job.Error = err.Error()
		if saveErr := o.jobs.Save(job); saveErr != nil {
			logger.L().Warn("failed to persist job failure", zap.Error(saveErr))
		}
		em.terminal(models.Event{Type: evType, Stage: stage, Message: err.Error()})
	}

	if err := job.Renderable(); err != nil {
		fail(models.StageAudio, err)
		return
	}

	segments, transitionTypes, err := o.resolvePlan(job, req)
	if err != nil {
		fail(models.StageAudio, err)
		return
	}

	job.Status = models.JobStatusRendering
	job.Error = ""
	if err := o.jobs.Save(job); err != nil {
		fail(models.StageAudio, err)
		return
	}

	width, height := o.cfg.Width, o.cfg.Height
	compositor := NewSegmentCompositor(o.runner, o.cfg)
	if preview {
		width, height = o.cfg.PreviewWidth, o.cfg.PreviewHeight
		compositor = NewPreviewCompositor(o.runner, o.cfg)
	}

	// --- AudioExtract ---
	audioPath := ""
	if !preview {
		em.progress(models.StageAudio, 0, "extracting soundtrack from artist clip")
		audioPath = filepath.Join(dir, "soundtrack.m4a")
		err := o.step(ctx, func(sctx context.Context) error {
			return media.ExtractAudio(sctx, o.runner, job.Clips[models.ClipArtist], audioPath)
		})
		if err != nil {
			fail(models.StageAudio, err)
			return
		}
		em.progress(models.StageAudio, 100, "soundtrack ready")
	}

	// --- CardRender ---
	em.progress(models.StageCards, 0, "rendering intro and outro cards")
	title := job.ArtistName
	if title == "" && job.Analysis != nil {
		title = job.Analysis.SuggestedArtistName
	}
	if title == "" {
		title = "Live Session"
	}
	subtitle := ""
	if job.Analysis != nil {
		subtitle = strings.TrimSpace(job.Analysis.Mood.Genre + " · " + job.Analysis.Mood.Energy)
		subtitle = strings.Trim(subtitle, "· ")
	}
	outroLines := req.OutroLines
	if len(outroLines) == 0 && job.Analysis != nil {
		outroLines = job.Analysis.Outro.Lines()
	}
	if len(outroLines) == 0 {
		outroLines = o.cfg.OutroLines
	}

	introPNG := filepath.Join(dir, "intro.png")
	outroPNG := filepath.Join(dir, "outro.png")
	introMP4 := filepath.Join(dir, "intro.mp4")
	outroMP4 := filepath.Join(dir, "outro.mp4")
	if err := o.assets.IntroCard(title, subtitle, introPNG); err != nil {
		fail(models.StageCards, err)
		return
	}
	if err := o.assets.OutroCard(outroLines, outroPNG); err != nil {
		fail(models.StageCards, err)
		return
	}
	em.progress(models.StageCards, 40, "building card segments")
	err = o.step(ctx, func(sctx context.Context) error {
		if err := CardVideo(sctx, o.runner, introPNG, o.cfg.IntroDuration, o.cfg.FPS, width, height, introMP4); err != nil {
			return err
		}
		return CardVideo(sctx, o.runner, outroPNG, o.cfg.OutroDuration, o.cfg.FPS, width, height, outroMP4)
	})
	if err != nil {
		fail(models.StageCards, err)
		return
	}
	em.progress(models.StageCards, 100, "cards ready")

	// --- SegmentTransform ×3 ---
	segPaths := make([]string, len(segments))
	for i, seg := range segments {
		base := i * 100 / len(segments)
		em.progress(models.StageSegments, base, fmt.Sprintf("transforming %s segment", seg.ClipRole))
		segPaths[i] = filepath.Join(dir, fmt.Sprintf("segment_%d.mp4", i))
		err := o.step(ctx, func(sctx context.Context) error {
			return compositor.Render(sctx, o.segmentSpec(job, seg), segPaths[i], func(secs float64) {
				frac := 0.0
				if seg.Duration > 0 {
					frac = secs / seg.Duration
				}
				em.progress(models.StageSegments, base+int(frac*100)/len(segments), fmt.Sprintf("transforming %s segment", seg.ClipRole))
			})
		})
		if err != nil {
			fail(models.StageSegments, err)
			return
		}
	}
	em.progress(models.StageSegments, 100, "segments ready")

	// --- Timeline ---
	tl, err := o.buildTimeline(segments, segPaths, transitionTypes, introMP4, outroMP4)
	if err != nil {
		fail(models.StageConcat, err)
		return
	}

	// --- BeatSync ---
	beatSync := o.cfg.BeatSyncEnabled
	if req.BeatSync != nil {
		beatSync = *req.BeatSync
	}
	if !preview && beatSync {
		em.progress(models.StageBeatSync, 0, "detecting beats")
		var beats []float64
		err := o.step(ctx, func(sctx context.Context) error {
			var derr error
			beats, derr = o.detector.Detect(sctx, audioPath, tl.TotalDuration(), dir)
			return derr
		})
		if err != nil {
			// advisory stage: log and move on
			logger.L().Warn("beat detection failed, skipping beat sync", zap.Error(err))
			em.progress(models.StageBeatSync, 100, "beat sync skipped")
		} else {
			em.progress(models.StageBeatSync, 40, fmt.Sprintf("aligning boundaries to %d beats", len(beats)))
			aligned := AlignToBeats(tl, beats, o.cfg.BeatMaxShift, o.cfg.MinSegmentDuration)
			tl, err = o.applyAlignedDurations(ctx, tl, aligned, segments, job, compositor, introPNG, outroPNG, width, height)
			if err != nil {
				fail(models.StageBeatSync, err)
				return
			}
			em.progress(models.StageBeatSync, 100, "boundaries aligned")
		}
	}

	// --- Concatenate ---
	em.progress(models.StageConcat, 0, "concatenating with crossfades")
	concatPath := filepath.Join(dir, "concat.mp4")
	total := tl.TotalDuration()
	err = o.step(ctx, func(sctx context.Context) error {
		return NewConcatenator(o.runner).Concatenate(sctx, tl, concatPath, func(secs float64) {
			em.progress(models.StageConcat, int(secs/total*100), "concatenating with crossfades")
		})
	})
	if err != nil {
		fail(models.StageConcat, err)
		return
	}
	em.progress(models.StageConcat, 100, "draft assembled")

	// --- Review ---
	reviewEnabled := o.cfg.ReviewEnabled && o.review != nil
	if req.Review != nil {
		reviewEnabled = reviewEnabled && *req.Review
	}
	if !preview && reviewEnabled {
		em.progress(models.StageReview, 0, "reviewing transitions")
		reviewer := NewTransitionReviewer(o.runner, NewConcatenator(o.runner), o.review, o.cfg.ReviewFrameMargin, o.cfg.ReviewMaxRetries)
		// The review loop runs under the same step timeout as every other
		// external stage. Expiry surfaces as a failed extraction or vision
		// call inside Run, which accepts the current draft.
		_ = o.step(ctx, func(sctx context.Context) error {
			tl, concatPath = reviewer.Run(sctx, tl, concatPath, dir, func(pct int, msg string) {
				em.progress(models.StageReview, pct, msg)
			})
			return nil
		})
		em.progress(models.StageReview, 100, "review complete")
	}

	finalPath := concatPath

	if !preview {
		// --- CaptionRender ---
		em.progress(models.StageCaptions, 0, "rendering captions")
		captions, err := o.renderCaptions(tl, segments, dir)
		if err != nil {
			fail(models.StageCaptions, err)
			return
		}
		em.progress(models.StageCaptions, 100, "captions ready")

		// --- Composite ---
		em.progress(models.StageComposite, 0, "compositing final video")
		finalPath = filepath.Join(dir, "final.mp4")
		spec := ComposeSpec{
			Video:         concatPath,
			Audio:         audioPath,
			AudioOffset:   o.lipSyncOffset(tl, segments),
			Captions:      captions,
			TotalDuration: tl.TotalDuration(),
		}
		composer := NewFinalComposer(o.runner, o.assets, o.cfg)
		err = o.step(ctx, func(sctx context.Context) error {
			return composer.Compose(sctx, spec, finalPath, func(secs float64) {
				em.progress(models.StageComposite, int(secs/total*100), "compositing final video")
			})
		})
		if err != nil {
			fail(models.StageComposite, err)
			return
		}
		em.progress(models.StageComposite, 100, "composite complete")
	}

	outputs := map[string]string{"vertical": finalPath}
	if preview {
		outputs = map[string]string{"preview": finalPath}
	}

	// --- Thumbnail (non-fatal) ---
	if !preview && req.Thumbnail && job.Analysis != nil && job.Analysis.HeroFrame != nil {
		em.progress(models.StageThumbnail, 0, "composing thumbnail")
		hero := job.Analysis.HeroFrame
		composer := NewFinalComposer(o.runner, o.assets, o.cfg)
		thumbPath := filepath.Join(dir, "thumbnail.png")
		err := o.step(ctx, func(sctx context.Context) error {
			return composer.Thumbnail(sctx, job.Clips[hero.ClipRole], hero.Timestamp, title,
				filepath.Join(dir, "hero_frame.jpg"), thumbPath)
		})
		if err != nil {
			logger.L().Warn("thumbnail generation failed, omitting", zap.Error(err))
		} else {
			job.ThumbnailPath = thumbPath
			em.progress(models.StageThumbnail, 100, "thumbnail ready")
		}
	}

	// --- AspectExport (each non-fatal) ---
	if !preview && len(req.Formats) > 0 {
		composer := NewFinalComposer(o.runner, o.assets, o.cfg)
		for i, format := range req.Formats {
			em.progress(models.StageExport, i*100/len(req.Formats), "exporting "+format)
			out := filepath.Join(dir, "final_"+format+".mp4")
			var expErr error
			switch format {
			case "square":
				expErr = o.step(ctx, func(sctx context.Context) error {
					return composer.ExportSquare(sctx, finalPath, out)
				})
			case "wide":
				expErr = o.step(ctx, func(sctx context.Context) error {
					return composer.ExportWide(sctx, finalPath, out)
				})
			default:
				logger.L().Warn("unknown export format requested", zap.String("format", format))
				continue
			}
			if expErr != nil {
				logger.L().Warn("aspect export failed, omitting", zap.String("format", format), zap.Error(expErr))
				continue
			}
			outputs[format] = out
		}
		em.progress(models.StageExport, 100, "exports complete")
	}

	job.Status = models.JobStatusComplete
	// Merge: previews and full renders share the job's output map, so a
	// preview must not discard an earlier render's deliverables.
	if job.Outputs == nil {
		job.Outputs = make(map[string]string, len(outputs))
	}
	for k, v := range outputs {
		job.Outputs[k] = v
	}
	job.TotalDuration = tl.TotalDuration()
	if err := o.jobs.Save(job); err != nil {
		fail(models.StageComposite, err)
		return
	}

	em.terminal(models.Event{
		Type:          models.EventComplete,
		Percent:       100,
		Message:       "render complete",
		Outputs:       outputs,
		Thumbnail:     job.ThumbnailPath,
		TotalDuration: tl.TotalDuration(),
	})
}

// resolvePlan merges the request with the stored analysis into the final
// segment and transition plan. Structural problems (wrong counts, no plan
// at all) are rejected; everything numeric is clamped later.
func (o *Orchestrator) resolvePlan(job *models.Job, req models.RenderRequest) ([]models.Segment, []string, error) {
	segments := req.Segments
	if len(segments) == 0 {
		if job.Analysis == nil {
			return nil, nil, fmt.Errorf("job has no analysis and no caller-supplied segments")
		}
		segments = segmentsFromAnalysis(job.Analysis)
	}
	if len(segments) != len(models.AllClipRoles) {
		return nil, nil, fmt.Errorf("expected %d segments, got %d", len(models.AllClipRoles), len(segments))
	}

	for i := range segments {
		if segments[i].Duration <= 0 {
			segments[i].Duration = o.defaultSegmentDuration()
		}
		if segments[i].CaptionStyle == "" {
			segments[i].CaptionStyle = captionStyles[i%len(captionStyles)]
		}
	}

	types := req.Transitions
	if len(types) == 0 && job.Analysis != nil {
		for _, t := range job.Analysis.Transitions {
			types = append(types, t.Type)
		}
	}
	if len(types) != len(segments)-1 {
		return nil, nil, fmt.Errorf("expected %d transitions, got %d", len(segments)-1, len(types))
	}
	for i := range types {
		types[i] = NormalizeTransition(types[i])
	}
	return segments, types, nil
}

func (o *Orchestrator) defaultSegmentDuration() float64 {
	body := o.cfg.TargetTotal - o.cfg.IntroDuration - o.cfg.OutroDuration
	d := body / float64(len(models.AllClipRoles))
	if d < o.cfg.MinSegmentDuration {
		d = o.cfg.MinSegmentDuration
	}
	return d
}

// segmentsFromAnalysis converts the stored analysis into a render plan,
// honoring the AI's declared ordering and per-clip effect hints.
func segmentsFromAnalysis(a *models.Analysis) []models.Segment {
	order := a.SegmentOrder
	if len(order) != len(a.Segments) {
		order = nil
		for _, s := range a.Segments {
			order = append(order, s.ClipRole)
		}
	}

	byRole := make(map[models.ClipRole]models.AnalysisSegment, len(a.Segments))
	for _, s := range a.Segments {
		byRole[s.ClipRole] = s
	}

	var out []models.Segment
	for _, role := range order {
		src, ok := byRole[role]
		if !ok {
			continue
		}
		seg := models.Segment{
			ClipRole:  role,
			StartTime: src.StartTime,
			Duration:  src.Duration,
			Caption:   src.Caption,
		}
		if kb, ok := a.KenBurns[role]; ok && kb.Enabled {
			kbCopy := kb
			seg.KenBurns = &kbCopy
		}
		if cg, ok := a.ColorGrade[role]; ok {
			cgCopy := cg
			seg.ColorGrade = &cgCopy
		}
		out = append(out, seg)
	}
	return out
}

func (o *Orchestrator) segmentSpec(job *models.Job, seg models.Segment) SegmentSpec {
	info := job.ClipInfo[seg.ClipRole]
	srcDur := 0.0
	if info != nil {
		srcDur = info.Duration
	}
	return SegmentSpec{
		Source:         job.Clips[seg.ClipRole],
		SourceDuration: srcDur,
		Seek:           seg.StartTime,
		OutputDuration: seg.Duration,
		Speed:          seg.Speed,
		FitMode:        seg.FitMode,
		KenBurns:       seg.KenBurns,
		ColorGrade:     seg.ColorGrade,
	}
}

// buildTimeline assembles [intro, seg0..segN, outro]. The intro join uses
// the standard crossfade; the outro join uses a longer dissolve.
func (o *Orchestrator) buildTimeline(segments []models.Segment, segPaths []string, types []string, introMP4, outroMP4 string) (Timeline, error) {
	items := []Item{{Label: "intro", Path: introMP4, Duration: o.cfg.IntroDuration}}
	for i, seg := range segments {
		items = append(items, Item{Label: string(seg.ClipRole), Path: segPaths[i], Duration: seg.Duration})
	}
	items = append(items, Item{Label: "outro", Path: outroMP4, Duration: o.cfg.OutroDuration})

	transitions := []Transition{{Type: "fade", Duration: o.cfg.TransitionDuration}}
	for _, t := range types {
		transitions = append(transitions, Transition{Type: t, Duration: o.cfg.TransitionDuration})
	}
	transitions = append(transitions, Transition{Type: "dissolve", Duration: o.cfg.TransitionDuration * 2})

	return NewTimeline(items, transitions)
}

// applyAlignedDurations re-renders every timeline item whose duration was
// nudged by beat alignment, so the files on disk match the arithmetic.
func (o *Orchestrator) applyAlignedDurations(ctx context.Context, old, aligned Timeline, segments []models.Segment, job *models.Job, compositor *SegmentCompositor, introPNG, outroPNG string, width, height int) (Timeline, error) {
	for i := range aligned.Items {
		if aligned.Items[i].Duration == old.Items[i].Duration {
			continue
		}
		item := aligned.Items[i]
		logger.L().Debug("re-rendering item after beat alignment",
			zap.String("item", item.Label),
			zap.Float64("from", old.Items[i].Duration),
			zap.Float64("to", item.Duration))

		var err error
		switch item.Label {
		case "intro":
			err = o.step(ctx, func(sctx context.Context) error {
				return CardVideo(sctx, o.runner, introPNG, item.Duration, o.cfg.FPS, width, height, item.Path)
			})
		case "outro":
			err = o.step(ctx, func(sctx context.Context) error {
				return CardVideo(sctx, o.runner, outroPNG, item.Duration, o.cfg.FPS, width, height, item.Path)
			})
		default:
			seg := segments[i-1]
			seg.Duration = item.Duration
			err = o.step(ctx, func(sctx context.Context) error {
				return compositor.Render(sctx, o.segmentSpec(job, seg), item.Path, nil)
			})
		}
		if err != nil {
			return aligned, fmt.Errorf("re-render of %s after beat alignment failed: %w", item.Label, err)
		}
	}
	return aligned, nil
}

// renderCaptions rasterizes one caption per captioned segment and computes
// its on-screen window from the shared timeline: fully visible once the
// incoming blend completes, gone when the outgoing blend starts.
func (o *Orchestrator) renderCaptions(tl Timeline, segments []models.Segment, dir string) ([]CaptionOverlay, error) {
	var overlays []CaptionOverlay
	for i, seg := range segments {
		if strings.TrimSpace(seg.Caption) == "" {
			continue
		}
		itemIdx := i + 1 // items are [intro, seg0.., outro]
		img := filepath.Join(dir, fmt.Sprintf("caption_%d.png", i))
		if err := o.assets.Caption(seg.Caption, img); err != nil {
			return nil, fmt.Errorf("caption rasterization failed: %w", err)
		}
		overlays = append(overlays, CaptionOverlay{
			Image: img,
			Start: tl.ItemStart(itemIdx) + tl.Transitions[itemIdx-1].Duration,
			End:   tl.Offset(itemIdx),
			Style: seg.CaptionStyle,
		})
	}
	return overlays, nil
}

// lipSyncOffset computes the soundtrack start offset from the artist
// segment's seek point and its position after the intro.
func (o *Orchestrator) lipSyncOffset(tl Timeline, segments []models.Segment) float64 {
	for i, seg := range segments {
		if seg.ClipRole != models.ClipArtist {
			continue
		}
		artistStart := tl.ItemStart(i+1) - o.cfg.IntroDuration
		if artistStart < 0 {
			artistStart = 0
		}
		offset := seg.StartTime - o.cfg.IntroDuration - artistStart
		if offset < 0 {
			return 0
		}
		return offset
	}
	return 0
}
