// Package arbiter owns the rotor state. Every command, from any
// ingress channel, and the periodic re-estimation tick are funneled
// through one run loop, so no two operations are ever evaluated
// concurrently against the same state and the serial channel has
// exactly one writer.
package arbiter

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/rotor"
)

// ErrNotCalibrated rejects motion commands issued before a calibration
// is loaded. Nothing is sent to the hardware.
var ErrNotCalibrated = errors.New("arbiter: no calibration loaded")

// ErrNonFiniteTarget rejects NaN or infinite target angles. Limits
// cannot clamp them, so one accepted would become the authoritative
// position and be persisted.
var ErrNonFiniteTarget = errors.New("arbiter: target is not finite")

// TransportError wraps a failed or timed-out serial write. The
// in-flight plan is abandoned when it occurs: the estimate after a
// failed write is unreliable, so the move is not retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "arbiter: transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Transport writes frames to the rotor. *pelco.Conn implements it.
type Transport interface {
	Send(f pelco.Frame) error
}

// PositionStore persists the estimated position so a restart does not
// silently re-zero the rotor.
type PositionStore interface {
	Save(p rotor.Position) error
}

// Ack reports the effective result of an accepted motion command.
// Clamped means the requested target was outside the travel limits and
// was moved to the nearest stop; that is a success, not an error.
type Ack struct {
	Target  rotor.Position
	Clamped bool
}

// DefaultTickPeriod drives re-estimation and live updates while moving.
const DefaultTickPeriod = 100 * time.Millisecond

type Config struct {
	Calibration rotor.Calibration
	Limits      rotor.Limits
	Transport   Transport
	// Address is the Pelco-D device address.
	Address byte
	// TickPeriod defaults to DefaultTickPeriod.
	TickPeriod time.Duration
	// Notify, if set, receives a snapshot on every accepted command,
	// every tick while moving, and every transition to idle.
	Notify rotor.StatusCallback
	// Store, if set, is written on every transition to idle.
	Store PositionStore
	// InitialPosition seeds the estimate, normally from the store.
	InitialPosition rotor.Position
}

type kind int

const (
	kindMove kind = iota
	kindNudge
	kindHorizon
	kindStop
	kindReset
	kindReload
	kindStatus
)

type command struct {
	kind   kind
	source rotor.Source
	az, el *float64
	delta  float64
	cal    rotor.Calibration
	limits rotor.Limits
}

type response struct {
	ack    Ack
	status rotor.Status
	err    error
}

type request struct {
	cmd   command
	reply chan response
}

type Arbiter struct {
	cal       rotor.Calibration
	limits    rotor.Limits
	transport Transport
	address   byte
	period    time.Duration
	notify    rotor.StatusCallback
	store     PositionStore

	now  func() time.Time
	reqs chan request

	// Everything below is owned by the run loop.
	pos        rotor.Position
	plan       *rotor.Plan
	lastMask   byte
	lastSource rotor.Source
}

func New(cfg Config) *Arbiter {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	return &Arbiter{
		cal:       cfg.Calibration,
		limits:    cfg.Limits,
		transport: cfg.Transport,
		address:   cfg.Address,
		period:    cfg.TickPeriod,
		notify:    cfg.Notify,
		store:     cfg.Store,
		now:       time.Now,
		reqs:      make(chan request),
		pos:       cfg.InitialPosition,
	}
}

// Run processes commands and ticks until the context is canceled. It
// is the only goroutine that touches the state or the transport.
func (a *Arbiter) Run(ctx context.Context) error {
	t := time.NewTicker(a.period)
	defer t.Stop()
	a.publish(a.now())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-a.reqs:
			req.reply <- a.apply(req.cmd)
		case <-t.C:
			a.tick()
		}
	}
}

// MoveAbsolute moves either or both axes to absolute targets in
// degrees. A nil axis keeps its current value. Issuing a move while
// already moving replans from the interrupted estimate.
func (a *Arbiter) MoveAbsolute(ctx context.Context, src rotor.Source, az, el *float64) (Ack, error) {
	resp, err := a.do(ctx, command{kind: kindMove, source: src, az: az, el: el})
	return resp.ack, err
}

// NudgeElevation moves elevation by delta degrees relative to the
// current estimate.
func (a *Arbiter) NudgeElevation(ctx context.Context, src rotor.Source, delta float64) (Ack, error) {
	resp, err := a.do(ctx, command{kind: kindNudge, source: src, delta: delta})
	return resp.ack, err
}

// SetHorizon moves elevation to 0 with azimuth unchanged.
func (a *Arbiter) SetHorizon(ctx context.Context, src rotor.Source) (Ack, error) {
	resp, err := a.do(ctx, command{kind: kindHorizon, source: src})
	return resp.ack, err
}

// Stop halts motion and freezes the estimate at its current value.
func (a *Arbiter) Stop(ctx context.Context, src rotor.Source) error {
	_, err := a.do(ctx, command{kind: kindStop, source: src})
	return err
}

// ResetPosition declares the rotor to be at the given position. Any
// active plan is discarded without commanding the hardware; the rotor
// is assumed stationary at this user-invoked recalibration point.
func (a *Arbiter) ResetPosition(ctx context.Context, src rotor.Source, az, el float64) error {
	_, err := a.do(ctx, command{kind: kindReset, source: src, az: &az, el: &el})
	return err
}

// Reload replaces the calibration and limits wholesale.
func (a *Arbiter) Reload(ctx context.Context, cal rotor.Calibration, limits rotor.Limits) error {
	_, err := a.do(ctx, command{kind: kindReload, cal: cal, limits: limits})
	return err
}

// Status returns the live estimated state, serialized with every other
// operation.
func (a *Arbiter) Status(ctx context.Context) (rotor.Status, error) {
	resp, err := a.do(ctx, command{kind: kindStatus})
	return resp.status, err
}

func (a *Arbiter) do(ctx context.Context, cmd command) (response, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case a.reqs <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (a *Arbiter) apply(cmd command) response {
	now := a.now()
	switch cmd.kind {
	case kindStatus:
		return response{status: a.statusAt(now)}

	case kindReload:
		a.cal = cmd.cal
		a.limits = cmd.limits
		log.Printf("reloaded config: az %.2f°/s el %.2f°/s", a.cal.AzSpeed, a.cal.ElSpeed)
		a.publish(now)
		return response{}

	case kindReset:
		p := rotor.Position{Azimuth: *cmd.az, Elevation: *cmd.el}
		if !p.Finite() {
			return response{err: ErrNonFiniteTarget}
		}
		a.plan = nil
		a.pos = p
		a.lastSource = cmd.source
		log.Printf("%s reset position to az %.1f el %.1f", cmd.source, a.pos.Azimuth, a.pos.Elevation)
		a.persist()
		a.publish(now)
		return response{ack: Ack{Target: a.pos}}

	case kindStop:
		pos := a.positionAt(now)
		wasMoving := a.plan != nil
		a.plan = nil
		a.pos = pos
		a.lastSource = cmd.source
		err := a.transport.Send(pelco.Stop(a.address))
		if wasMoving {
			a.persist()
		}
		a.publish(now)
		if err != nil {
			return response{err: &TransportError{err}}
		}
		log.Printf("%s stopped rotor at az %.1f el %.1f", cmd.source, pos.Azimuth, pos.Elevation)
		return response{}

	default:
		return a.move(cmd, now)
	}
}

func (a *Arbiter) move(cmd command, now time.Time) response {
	if !a.cal.Valid() {
		return response{err: ErrNotCalibrated}
	}
	cur := a.positionAt(now)
	target := cur
	switch cmd.kind {
	case kindMove:
		if cmd.az != nil {
			target.Azimuth = *cmd.az
		}
		if cmd.el != nil {
			target.Elevation = *cmd.el
		}
	case kindHorizon:
		target.Elevation = 0
	case kindNudge:
		target.Elevation = cur.Elevation + cmd.delta
	}
	if !target.Finite() {
		return response{err: ErrNonFiniteTarget}
	}
	target, clamped := a.limits.Clamp(target)

	// The interrupted estimate becomes the new start; the old plan is
	// discarded, never merged.
	wasMoving := a.plan != nil
	plan := rotor.PlanMove(cur, target, a.cal, now)
	a.pos = cur
	a.plan = nil
	a.lastSource = cmd.source

	if plan.Idle() {
		if wasMoving {
			if err := a.transport.Send(pelco.Stop(a.address)); err != nil {
				a.publish(now)
				return response{err: &TransportError{err}}
			}
		}
		a.persist()
		a.publish(now)
		return response{ack: Ack{Target: target, Clamped: clamped}}
	}

	mask := motionMask(plan, now)
	if err := a.transport.Send(pelco.EncodeMove(a.address, mask, pelco.SpeedNormal)); err != nil {
		a.publish(now)
		return response{err: &TransportError{err}}
	}
	a.plan = &plan
	a.lastMask = mask
	log.Printf("%s move to az %.1f el %.1f (%.1fs)", cmd.source, target.Azimuth, target.Elevation, plan.Duration().Seconds())
	a.publish(now)
	return response{ack: Ack{Target: target, Clamped: clamped}}
}

func (a *Arbiter) tick() {
	if a.plan == nil {
		return
	}
	now := a.now()
	if a.plan.Complete(now) {
		a.pos = a.plan.Target
		a.plan = nil
		if err := a.transport.Send(pelco.Stop(a.address)); err != nil {
			log.Printf("stop after move: %v", err)
		}
		log.Printf("move complete at az %.1f el %.1f", a.pos.Azimuth, a.pos.Elevation)
		a.persist()
		a.publish(now)
		return
	}
	// One axis may have finished while the other is still running;
	// reissue the frame without the finished axis.
	if mask := motionMask(*a.plan, now); mask != a.lastMask {
		if err := a.transport.Send(pelco.EncodeMove(a.address, mask, pelco.SpeedNormal)); err != nil {
			log.Printf("abandoning move: %v", err)
			a.pos = a.plan.Estimate(now)
			a.plan = nil
			a.persist()
			a.publish(now)
			return
		}
		a.lastMask = mask
	}
	a.publish(now)
}

func motionMask(p rotor.Plan, now time.Time) byte {
	var m byte
	if p.MoveAz && !p.AzDone(now) {
		if p.DirAz > 0 {
			m |= pelco.CmdPanRight
		} else {
			m |= pelco.CmdPanLeft
		}
	}
	if p.MoveEl && !p.ElDone(now) {
		if p.DirEl > 0 {
			m |= pelco.CmdTiltUp
		} else {
			m |= pelco.CmdTiltDown
		}
	}
	return m
}

func (a *Arbiter) positionAt(now time.Time) rotor.Position {
	if a.plan != nil {
		return a.plan.Estimate(now)
	}
	return a.pos
}

func (a *Arbiter) statusAt(now time.Time) rotor.Status {
	return rotor.Status{Position: a.positionAt(now), Moving: a.plan != nil}
}

func (a *Arbiter) publish(now time.Time) {
	if a.notify != nil {
		a.notify(a.statusAt(now))
	}
}

func (a *Arbiter) persist() {
	if a.store == nil {
		return
	}
	if err := a.store.Save(a.pos); err != nil {
		log.Printf("saving position: %v", err)
	}
}
