// Command datamgr bridges the DSRC/C-V2X radio side of the intersection
// to the tci/aware processes: it relays inbound BSM/SRM traffic to
// aware, re-broadcasts MAP/SPaT/SSM out to the radios, and forwards a
// copy of the same traffic to the pedestrian cloud peer behind the
// savari header.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mmitss/intersection/internal/app"
	"github.com/mmitss/intersection/internal/config"
	"github.com/mmitss/intersection/internal/fanout"
	"github.com/mmitss/intersection/internal/geom"
	"github.com/mmitss/intersection/internal/logging"
)

func main() {
	var configPath, intersectionName string

	root := &cobra.Command{
		Use:   "datamgr",
		Short: "relays DSRC/C-V2X traffic between the radios and tci/aware",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := app.Bootstrap("datamgr", configPath)
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

	listenConn, err := fanout.NewListenConn(cfg.Network.DataMgrAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listenConn.Close()

	awareConn, err := fanout.NewDialConn(cfg.Network.AwareAddr)
	if err != nil {
		return fmt.Errorf("dial aware: %w", err)
	}
	defer awareConn.Close()

	var radios []*fanout.Conn
	for _, addr := range cfg.Network.RadioAddrs {
		c, err := fanout.NewDialConn(addr)
		if err != nil {
			return fmt.Errorf("dial radio %s: %w", addr, err)
		}
		defer c.Close()
		radios = append(radios, c)
	}

	var savari *fanout.Conn
	if cfg.Network.SavariAddr != "" {
		savari, err = fanout.NewDialConn(cfg.Network.SavariAddr)
		if err != nil {
			return fmt.Errorf("dial savari peer: %w", err)
		}
		defer savari.Close()
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay(gctx, intersectionID, listenConn, awareConn, radios, savari, log) })
	return g.Wait()
}

// relay reads every inbound datagram once and routes it by message ID:
// BSM/SRM from the radios go to aware, MAP/SPaT/SSM from tci/aware go
// back out to the radios and the savari peer. A single listen socket
// serves both directions since nothing here needs to distinguish
// sender beyond the payload's own message ID.
func relay(ctx context.Context, intersectionID uint16, listenConn *fanout.Conn, awareConn *fanout.Conn, radios []*fanout.Conn, savari *fanout.Conn, log *logging.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		h, body, err := listenConn.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return fmt.Errorf("fanout recv: %w", err)
			}
		}

		switch h.ID {
		case fanout.MsgBSM, fanout.MsgSRM:
			if err := awareConn.Send(h.ID, h.MsSinceMidnight, body); err != nil {
				log.Warn("relay to aware", "msgID", h.ID, "err", err)
			}
			forwardToSavari(savari, h, body, intersectionID, log)

		case fanout.MsgMAP, fanout.MsgSPAT, fanout.MsgSSM:
			broadcastToRadios(radios, h, body, log)
			forwardToSavari(savari, h, body, intersectionID, log)

		default:
			// soft-call and performance channels aren't radio-facing; datamgr
			// has no business relaying them.
		}
	}
}

func broadcastToRadios(radios []*fanout.Conn, h fanout.Header, body []byte, log *logging.Logger) {
	for _, r := range radios {
		if err := r.Send(h.ID, h.MsSinceMidnight, body); err != nil {
			log.Warn("broadcast to radio", "msgID", h.ID, "err", err)
		}
	}
}

// savariTypeFor maps a fanout message ID onto the savari header's type
// byte; the cloud peer keys its own dispatch off this field rather than
// the inter-process magic header.
func savariTypeFor(id fanout.MsgID) (uint8, bool) {
	switch id {
	case fanout.MsgBSM:
		return 1, true
	case fanout.MsgSRM:
		return 2, true
	case fanout.MsgMAP:
		return 3, true
	case fanout.MsgSPAT:
		return 4, true
	case fanout.MsgSSM:
		return 5, true
	default:
		return 0, false
	}
}

func forwardToSavari(savari *fanout.Conn, h fanout.Header, body []byte, intersectionID uint16, log *logging.Logger) {
	if savari == nil {
		return
	}
	typeID, ok := savariTypeFor(h.ID)
	if !ok {
		return
	}
	frame := fanout.EncodeSavari(fanout.SavariHeader{
		Type:           typeID,
		IntersectionID: intersectionID,
		Seconds:        h.MsSinceMidnight / 1000,
		Msecs:          uint16(h.MsSinceMidnight % 1000),
		Length:         uint32(len(body)),
	}, body)
	if _, err := savari.WriteRaw(frame); err != nil {
		log.Warn("forward to savari peer", "err", err)
	}
}
