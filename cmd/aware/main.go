// Command aware is the priority/aware engine: it consumes BSM/SRM
// traffic relayed by datamgr and SPaT/status facts relayed by tci, runs
// the vehicle-tracking, soft-call and priority-grant decision, and
// sends the resulting pre-encoded AB3418 frame back to tci while
// publishing SSM through datamgr.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmitss/intersection/internal/app"
	"github.com/mmitss/intersection/internal/config"
	"github.com/mmitss/intersection/internal/fanout"
	"github.com/mmitss/intersection/internal/geom"
	"github.com/mmitss/intersection/internal/j2735"
	"github.com/mmitss/intersection/internal/logging"
	"github.com/mmitss/intersection/internal/priority"
)

const tickInterval = 5 * time.Millisecond

func main() {
	var configPath, intersectionName string

	root := &cobra.Command{
		Use:   "aware",
		Short: "priority and soft-call decision engine for one intersection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := app.Bootstrap("aware", configPath)
			if err != nil {
				return err
			}
			if intersectionName != "" {
				cfg.IntersectionName = intersectionName
			}
			os.Exit(app.RunMain(log, func() error { return run(cfg, log) }))
			return nil
		},
	}
	root.Flags().StringVarP(&configPath, "config", "s", "", "YAML config file (required)")
	root.Flags().StringVarP(&intersectionName, "name", "n", "", "intersection name override")
	_ = root.MarkFlagRequired("config")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	m, err := geom.LoadNmap(cfg.Nmap)
	if err != nil {
		return fmt.Errorf("load nmap: %w", err)
	}
	if len(m.Intersections) == 0 {
		return fmt.Errorf("nmap %s defines no intersection", cfg.Nmap)
	}
	intersectionID := m.Intersections[0].IntersectionID

	engine := priority.NewEngine(m, cfg.Serial.ControllerAddr, cfg.DSRCTimeout)

	tciConn, err := fanout.NewDialConn(cfg.Network.TCIAddr)
	if err != nil {
		return fmt.Errorf("dial tci: %w", err)
	}
	defer tciConn.Close()

	dataMgrConn, err := fanout.NewDialConn(cfg.Network.DataMgrAddr)
	if err != nil {
		return fmt.Errorf("dial datamgr: %w", err)
	}
	defer dataMgrConn.Close()

	listenConn, err := fanout.NewListenConn(cfg.Network.AwareAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listenConn.Close()

	ctx, cancel := app.SignalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	state := newSharedState()

	g.Go(func() error { return readInbound(gctx, listenConn, state) })
	g.Go(func() error {
		return tickLoop(gctx, log, intersectionID, engine, tciConn, dataMgrConn, state)
	})

	return g.Wait()
}

// sharedState carries the last TickInput facts from tci into the decision
// loop; it's read and written only from goroutines that hand off over a
// channel, so the struct itself needs no locking.
type sharedState struct {
	updates chan priority.TickInput
	bsms    chan j2735.BSMRecord
	srms    chan j2735.SrmRecord
}

func newSharedState() *sharedState {
	return &sharedState{
		updates: make(chan priority.TickInput, 8),
		bsms:    make(chan j2735.BSMRecord, 64),
		srms:    make(chan j2735.SrmRecord, 16),
	}
}

func readInbound(ctx context.Context, conn *fanout.Conn, state *sharedState) error {
	for {
		h, body, err := conn.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("fanout recv: %w", err)
			}
		}
		switch h.ID {
		case fanout.MsgBSM:
			rec, err := j2735.DecodeBSMPayload(body)
			if err != nil {
				continue
			}
			select {
			case state.bsms <- rec:
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		case fanout.MsgSRM:
			rec, err := j2735.DecodeSrmPayload(body)
			if err != nil {
				continue
			}
			select {
			case state.srms <- rec:
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		case fanout.MsgCntrlStatus:
			in, ok := decodeTickInput(body)
			if !ok {
				continue
			}
			select {
			case state.updates <- in:
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
	}
}

func tickLoop(
	ctx context.Context,
	log *logging.Logger,
	intersectionID uint16,
	engine *priority.Engine,
	tciConn, dataMgrConn *fanout.Conn,
	state *sharedState,
) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var last priority.TickInput

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case rec := <-state.bsms:
			engine.OnBSM(time.Now(), rec)

		case rec := <-state.srms:
			engine.OnSRM(time.Now(), rec)

		case in := <-state.updates:
			last = in

		case <-ticker.C:
			now := time.Now()
			if last.CycleLengthDs == 0 {
				continue
			}
			frame, wrote := engine.Tick(now, last)
			if wrote {
				if err := tciConn.Send(fanout.MsgSoftcall, msSinceMidnightNow(), frame); err != nil {
					log.Warn("send softcall to tci", "err", err)
				}
			}
			if ssm, ok := engine.BuildSSM(now, intersectionID); ok {
				payload, err := j2735.EncodeSsmPayload(ssm)
				if err != nil {
					log.Warn("encode ssm", "err", err)
					continue
				}
				if err := dataMgrConn.Send(fanout.MsgSSM, msSinceMidnightNow(), payload); err != nil {
					log.Warn("send ssm to datamgr", "err", err)
				}
			}
		}
	}
}

// decodeTickInput rebuilds the engine's per-tick controller facts from
// the cntrlstatus payload tci broadcasts each tick.
func decodeTickInput(body []byte) (priority.TickInput, bool) {
	s, err := fanout.DecodeCntrlStatus(body)
	if err != nil {
		return priority.TickInput{}, false
	}
	return priority.TickInput{
		Mode:                     s.Mode,
		LocalCycleClockDs:        s.LocalCycleClockDs,
		CycleLengthDs:            s.CycleLengthDs,
		MaxTime2ChangePhaseExtDs: s.MaxTime2ChangePhaseExtDs,
		Phases:                   s.Phases,
		SyncPhase:                s.SyncPhase,
	}, true
}

func msSinceMidnightNow() uint32 {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return uint32(now.Sub(midnight).Milliseconds())
}
