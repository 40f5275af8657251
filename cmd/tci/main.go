// Command tci is the controller interface process: it owns the two
// AB3418 serial links to the NEMA cabinet, derives phase/coordination
// state from what the controller pushes and what the poll driver
// retrieves, and fans that state out to datamgr/aware while applying
// the soft-call frames aware computes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"

	"github.com/mmitss/intersection/internal/ab3418"
	"github.com/mmitss/intersection/internal/app"
	"github.com/mmitss/intersection/internal/config"
	"github.com/mmitss/intersection/internal/fanout"
	"github.com/mmitss/intersection/internal/geom"
	"github.com/mmitss/intersection/internal/logging"
	"github.com/mmitss/intersection/internal/timingcard"
)

// tickInterval is the cooperative loop's wake period; fine enough to
// track a 0.1 s controller clock without busy-spinning.
const tickInterval = 5 * time.Millisecond

// maxTime2ChangePhaseExtDs bounds how far into a cycle a TSP green
// extension may still be granted; it's an installation tuning value,
// not something the controller reports, so it's fixed here rather than
// threaded through the poll table.
const maxTime2ChangePhaseExtDs = 300

func main() {
	var configPath, intersectionName string

	root := &cobra.Command{
		Use:   "tci",
		Short: "NEMA controller interface for one intersection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := app.Bootstrap("tci", configPath)
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
	mapPayload := m.Intersections[0].EncodedMAP

	table := ab3418.DefaultPollTable()
	if cfg.PollTableFile != "" {
		log.Info("using default poll table; vendor file override not supplied", "file", cfg.PollTableFile)
	}
	driver := ab3418.NewDriver(table)
	reasm := ab3418.NewReassembler(driver.FCSRequired)

	card, err := timingcard.LoadTimingCard(cfg.TimingCardFile)
	if err != nil {
		return fmt.Errorf("load timing card: %w", err)
	}
	card.DeriveAll()

	portB, err := openSerial(cfg.Serial.PortB, cfg.Serial.BaudRate)
	if err != nil {
		return fmt.Errorf("open port B: %w", err)
	}
	defer portB.Close()

	portA, err := openSerial(cfg.Serial.PortA, cfg.Serial.BaudRate)
	if err != nil {
		return fmt.Errorf("open port A: %w", err)
	}
	defer portA.Close()

	awareConn, err := fanout.NewDialConn(cfg.Network.AwareAddr)
	if err != nil {
		return fmt.Errorf("dial aware: %w", err)
	}
	defer awareConn.Close()

	dataMgrConn, err := fanout.NewDialConn(cfg.Network.DataMgrAddr)
	if err != nil {
		return fmt.Errorf("dial datamgr: %w", err)
	}
	defer dataMgrConn.Close()

	listenConn, err := fanout.NewListenConn(cfg.Network.TCIAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listenConn.Close()

	ctx, cancel := app.SignalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	spatBytes := make(chan []byte, 16)
	softcallBytes := make(chan []byte, 16)

	g.Go(func() error { return readSerial(gctx, portA, spatBytes) })
	g.Go(func() error { return readFanoutSoftcalls(gctx, listenConn, softcallBytes) })
	g.Go(func() error {
		return tickLoop(gctx, log, intersectionID, mapPayload, card, driver, reasm, portB, awareConn, dataMgrConn, spatBytes, softcallBytes)
	})

	return g.Wait()
}

func openSerial(name string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(name, mode)
}

func readSerial(ctx context.Context, port serial.Port, out chan<- []byte) error {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			continue
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func readFanoutSoftcalls(ctx context.Context, conn *fanout.Conn, out chan<- []byte) error {
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
		if h.ID != fanout.MsgSoftcall {
			continue
		}
		select {
		case out <- body:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func tickLoop(
	ctx context.Context,
	log *logging.Logger,
	intersectionID uint16,
	mapPayload []byte,
	card *timingcard.TimingCard,
	driver *ab3418.Driver,
	reasm *ab3418.Reassembler,
	portB serial.Port,
	awareConn, dataMgrConn *fanout.Conn,
	spatBytes, softcallBytes <-chan []byte,
) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	dispatch := fanout.NewDispatcher()

	var revision uint16
	tracker := &phaseStateTracker{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw := <-spatBytes:
			reasm.Feed(raw)
			for {
				f, err := decodeNext(reasm)
				if err != nil {
					log.Warn("malformed push frame", "err", err)
					continue
				}
				if f == nil {
					break
				}
				driver.ObserveAddress(f.Address)
				switch f.MessType {
				case ab3418.MessRawSpat:
					rs, err := ab3418.DecodeRawSpat(f.Payload)
					if err != nil {
						log.Warn("decode raw spat", "err", err)
						continue
					}
					revision++
					msSinceMidnight := msSinceMidnightNow()
					if dispatch.ShouldSendSPAT(revision) {
						status := buildCntrlStatus(tracker, card, rs)
						payload := encodeSpatFromRawSpat(intersectionID, rs, status, card.Flags.PermittedPed)
						if err := awareConn.Send(fanout.MsgSPAT, msSinceMidnight, payload); err != nil {
							log.Warn("send spat to aware", "err", err)
						}
						if err := dataMgrConn.Send(fanout.MsgSPAT, msSinceMidnight, payload); err != nil {
							log.Warn("send spat to datamgr", "err", err)
						}
						if err := awareConn.Send(fanout.MsgCntrlStatus, msSinceMidnight, fanout.EncodeCntrlStatus(status)); err != nil {
							log.Warn("send cntrlstatus to aware", "err", err)
						}
					}
				default:
					driver.HandleResponse(*f, func(desc string, code byte) {
						log.Warn("controller rejected poll", "entry", desc, "code", code)
					})
				}
			}

		case body := <-softcallBytes:
			if _, err := portB.Write(body); err != nil {
				log.Error("write softcall frame", "err", err)
			}

		case <-ticker.C:
			now := time.Now()
			if frame, ok := driver.Step(now); ok {
				if _, err := portB.Write(frame); err != nil {
					log.Error("write poll frame", "err", err)
				}
			}
			if driver.FellBack() {
				log.Warn("poll driver fell back to cached table values")
			}
			if len(mapPayload) > 0 && dispatch.ShouldSendMAP(now) {
				msSinceMidnight := msSinceMidnightNow()
				if err := awareConn.Send(fanout.MsgMAP, msSinceMidnight, mapPayload); err != nil {
					log.Warn("send map to aware", "err", err)
				}
				if err := dataMgrConn.Send(fanout.MsgMAP, msSinceMidnight, mapPayload); err != nil {
					log.Warn("send map to datamgr", "err", err)
				}
			}
		}
	}
}

func decodeNext(reasm *ab3418.Reassembler) (*ab3418.Frame, error) {
	f, err, ok := reasm.Next()
	if !ok {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func msSinceMidnightNow() uint32 {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return uint32(now.Sub(midnight).Milliseconds())
}
