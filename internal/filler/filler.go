// internal/filler/filler.go
package filler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/diagnostics"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/humanoid"
	"github.com/xkilldash9x/ghostpay/internal/locator"
)

// Typist deposits a value into an element the way a user would.
type Typist interface {
	Type(ctx context.Context, guard *generation.Guard, el dom.Element, value string) error
}

// Report summarizes one run. Field failures are recorded, never returned.
type Report struct {
	Layout  schemas.FormLayout
	Network string
	States  []schemas.FillState
	Filled  []schemas.Role
	Skipped []schemas.Role
}

// Filler drives the SCANNING, SELECTING_NETWORK, FILLING_NUMBER, FILLING_CONTACT, DONE sequence.
type Filler struct {
	cfg     config.FillerConfig
	locator *locator.Locator
	typist  Typist
	emitter diagnostics.Emitter
	logger  *zap.Logger
}

// New creates a Filler. A nil emitter discards diagnostics.
func New(cfg config.FillerConfig, loc *locator.Locator, typist Typist, emitter diagnostics.Emitter, logger *zap.Logger) *Filler {
	if emitter == nil {
		emitter = diagnostics.Nop
	}
	return &Filler{cfg: cfg, locator: loc, typist: typist, emitter: emitter, logger: logger.Named("filler")}
}

// Run fills the form for fc. It returns an error only when the run is cancelled or superseded;
// every other failure degrades that field and the machine still reaches DONE.
func (f *Filler) Run(ctx context.Context, doc dom.Document, guard *generation.Guard, fc schemas.FillContext) (Report, error) {
	r := run{Filler: f, doc: doc, guard: guard, fc: fc, logger: f.logger.With(zap.Uint64("generation", uint64(guard.Generation())))}

	steps := []struct {
		state schemas.FillState
		do    func(context.Context) error
	}{
		{schemas.StateScanning, r.scan},
		{schemas.StateSelectingNetwork, r.selectNetwork},
		{schemas.StateFillingNumber, r.fillNumber},
		{schemas.StateFillingContact, r.fillContact},
	}
	for _, step := range steps {
		if err := guard.Check(ctx); err != nil {
			return r.report, err
		}
		r.enter(step.state)
		if err := step.do(ctx); err != nil {
			return r.report, err
		}
	}
	r.enter(schemas.StateDone)
	return r.report, nil
}

// DetectLayout counts visible, enabled inputs with the split-box maximum length.
func (f *Filler) DetectLayout(ctx context.Context, doc dom.Document) (schemas.FormLayout, int, error) {
	boxes, err := f.splitBoxes(ctx, doc)
	if err != nil {
		return schemas.LayoutSingleField, 0, err
	}
	if len(boxes) >= f.cfg.SplitBoxThreshold {
		return schemas.LayoutSplitBoxes, len(boxes), nil
	}
	return schemas.LayoutSingleField, len(boxes), nil
}

// NetworkToken returns the radio label token for number.
func (f *Filler) NetworkToken(number string) string {
	if strings.HasPrefix(number, f.cfg.VisaPrefix) {
		return f.cfg.VisaToken
	}
	return f.cfg.OtherToken
}

func (f *Filler) splitBoxes(ctx context.Context, doc dom.Document) ([]dom.Element, error) {
	return locator.FindUsable(ctx, doc, dom.Candidate{Tag: "input", MaxLength: f.cfg.SplitBoxMaxLength})
}

// run is the state of one Run call.
type run struct {
	*Filler
	doc    dom.Document
	guard  *generation.Guard
	fc     schemas.FillContext
	logger *zap.Logger
	report Report
}

func (r *run) enter(state schemas.FillState) {
	r.report.States = append(r.report.States, state)
	r.logger.Debug("Filler state.", zap.String("state", string(state)))
}

// degrade records a per-field failure. Cancellation passes through untouched.
func (r *run) degrade(role schemas.Role, err error) error {
	if generation.IsCancellation(err) {
		return err
	}
	r.report.Skipped = append(r.report.Skipped, role)
	switch {
	case errors.Is(err, locator.ErrNotFound):
		diagnostics.Emitf(r.emitter, "%s not found, skipping", role)
	case errors.Is(err, humanoid.ErrValueMismatch):
		diagnostics.Emitf(r.emitter, "%s value mismatch after fill", role)
	default:
		diagnostics.Emitf(r.emitter, "%s fill failed: %v", role, err)
	}
	r.logger.Warn("Field degraded.", zap.String("role", string(role)), zap.Error(err))
	return nil
}

func (r *run) scan(ctx context.Context) error {
	layout, count, err := r.DetectLayout(ctx, r.doc)
	if err != nil {
		if generation.IsCancellation(err) {
			return err
		}
		r.logger.Warn("Layout scan failed, assuming single field.", zap.Error(err))
	}
	r.report.Layout = layout
	diagnostics.Emitf(r.emitter, "Layout %s (%d split boxes)", layout, count)
	return nil
}

func (r *run) selectNetwork(ctx context.Context) error {
	token := r.NetworkToken(r.fc.Card.Number)
	needle := strings.ToLower(token)

	for _, c := range r.locator.Candidates(schemas.RoleNetworkRadio) {
		radios, err := r.doc.FindAll(ctx, c.XPath())
		if err != nil {
			if generation.IsCancellation(err) {
				return err
			}
			r.logger.Debug("Radio query failed.", zap.Error(err))
			continue
		}
		for _, radio := range radios {
			if enabled, err := radio.IsEnabled(ctx); err != nil || !enabled {
				continue
			}
			label, err := radio.LabelText(ctx)
			if err != nil || !strings.Contains(strings.ToLower(label), needle) {
				continue
			}
			if err := radio.Click(ctx); err != nil {
				return r.degrade(schemas.RoleNetworkRadio, err)
			}
			r.report.Network = token
			r.report.Filled = append(r.report.Filled, schemas.RoleNetworkRadio)
			diagnostics.Emitf(r.emitter, "Selected network %s", token)
			return nil
		}
	}

	// Not every variant of the page has a network selector.
	r.logger.Debug("No network radio matched.", zap.String("token", token))
	return nil
}

func (r *run) fillNumber(ctx context.Context) error {
	if r.report.Layout == schemas.LayoutSplitBoxes {
		return r.fillSplitBoxes(ctx)
	}
	return r.fillRole(ctx, schemas.RoleCardNumber, r.fc.Card.Number)
}

// fillSplitBoxes writes the four groups into boxes 1-4 and again into the confirmation
// boxes 5-8.
func (r *run) fillSplitBoxes(ctx context.Context) error {
	boxes, err := r.splitBoxes(ctx, r.doc)
	if err != nil {
		return r.degrade(schemas.RoleCardNumber, err)
	}

	groups, surplus := SplitGroups(r.fc.Card.Number)
	if surplus > 0 {
		diagnostics.Emitf(r.emitter, "Card number longer than split boxes, %d digits dropped", surplus)
	}

	want := 2 * len(groups)
	if len(boxes) < want {
		diagnostics.Emitf(r.emitter, "Only %d split boxes available, expected %d", len(boxes), want)
	}

	mismatch := false
	for i := 0; i < want && i < len(boxes); i++ {
		group := groups[i%len(groups)]
		if err := r.writeBox(ctx, boxes[i], group); err != nil {
			if generation.IsCancellation(err) {
				return err
			}
			if !errors.Is(err, humanoid.ErrValueMismatch) {
				return r.degrade(schemas.RoleCardNumber, err)
			}
			mismatch = true
			diagnostics.Emitf(r.emitter, "Split box %d value mismatch", i+1)
		}
		if err := r.guard.Sleep(ctx, r.cfg.GroupPause); err != nil {
			return err
		}
	}

	if mismatch || len(boxes) < want {
		r.report.Skipped = append(r.report.Skipped, schemas.RoleCardNumber)
		return nil
	}
	r.report.Filled = append(r.report.Filled, schemas.RoleCardNumber)
	diagnostics.Emitf(r.emitter, "Filled %d split boxes", want)
	return nil
}

func (r *run) writeBox(ctx context.Context, el dom.Element, value string) error {
	if err := el.WriteValue(ctx, value); err != nil {
		return fmt.Errorf("filler: write box: %w", err)
	}
	for _, typ := range []dom.EventType{dom.EventInput, dom.EventChange} {
		if err := el.DispatchEvent(ctx, dom.Event{Type: typ}); err != nil {
			return fmt.Errorf("filler: dispatch %s: %w", typ, err)
		}
	}
	return humanoid.Verify(ctx, el, value)
}

func (r *run) fillContact(ctx context.Context) error {
	fields := []struct {
		role  schemas.Role
		value string
	}{
		{schemas.RoleEmail, r.fc.Email},
		{schemas.RolePhone, r.fc.Phone},
		{schemas.RoleAmount, r.fc.Amount},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := r.fillRole(ctx, field.role, field.value); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) fillRole(ctx context.Context, role schemas.Role, value string) error {
	el, err := r.locator.Resolve(ctx, r.doc, r.guard, role)
	if err != nil {
		return r.degrade(role, err)
	}
	if err := r.typist.Type(ctx, r.guard, el, value); err != nil {
		return r.degrade(role, err)
	}
	r.report.Filled = append(r.report.Filled, role)
	diagnostics.Emitf(r.emitter, "Filled %s", role)
	return nil
}
