// Command dicomulsrv is a thin, illustrative Verification SCP: it binds a
// listen port, accepts connections, and runs one Upper Layer association to
// completion per connection, answering any C-ECHO-RQ it receives and then
// honoring the peer's release. It exists to give the core module an
// end-to-end runnable example; its CLI and daemon-lifecycle concerns stay
// out of the library packages.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/mjpearson/dicomul/association"
	"github.com/mjpearson/dicomul/config"
	"github.com/mjpearson/dicomul/datasetdecoder"
	"github.com/mjpearson/dicomul/metrics"
	"github.com/mjpearson/dicomul/ulerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "dicomulsrv",
		Usage: "a minimal DICOM Upper Layer Verification SCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a presentation-context YAML config file",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "address to serve Prometheus /metrics on (empty disables it)",
				Value: "",
			},
		},
		ArgsUsage: "[port]",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "dicomulsrv:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	port := "11112"
	if c.Args().Present() {
		port = c.Args().First()
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	collector := metrics.New()
	if addr := c.String("metrics-addr"); addr != "" {
		go serveMetrics(addr, collector)
	}

	listenAddr := "0.0.0.0:" + port
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("dicomulsrv: listen on %s: %w", listenAddr, err)
	}
	dicomlog.Vprintf(0, "dicomulsrv: listening on %s, AE title %s", listenAddr, cfg.AETitle)

	opts := association.Options{
		CalledAETitle:             cfg.AETitle,
		MaxPDUSize:                cfg.MaxPDUSize,
		SupportedContexts:         cfg.SupportedContexts(),
		ImplementationClassUID:    cfg.ImplementationUID,
		ImplementationVersionName: "DICOMUL-1",
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			dicomlog.Vprintf(0, "dicomulsrv: accept: %v", err)
			continue
		}
		go serveConnection(conn, opts, collector)
	}
}

func serveMetrics(addr string, collector *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		dicomlog.Vprintf(0, "dicomulsrv: metrics server: %v", err)
	}
}

// serveConnection runs exactly one association to completion (one
// association per stream, one goroutine per association) and answers every
// C-ECHO-RQ it receives until the peer releases or aborts.
func serveConnection(conn net.Conn, opts association.Options, collector *metrics.Collector) {
	defer conn.Close()

	a := association.NewAcceptor(association.WrapConn(conn), opts, collector)
	if err := a.ReceiveAssociation(); err != nil {
		dicomlog.Vprintf(0, "dicomulsrv(%s): association rejected: %v", a.Label(), err)
		return
	}
	dicomlog.Vprintf(1, "dicomulsrv(%s): association established, %d context(s)", a.Label(), len(a.AcceptedContexts))

	for {
		cmd, ctxID, err := a.ReadDIMSECommand()
		if err != nil {
			if ulerr.Is(err, ulerr.KindPeerRequestedRelease) {
				if respErr := a.RespondToRelease(); respErr != nil {
					dicomlog.Vprintf(0, "dicomulsrv(%s): responding to release: %v", a.Label(), respErr)
				}
				dicomlog.Vprintf(1, "dicomulsrv(%s): released", a.Label())
				return
			}
			if ulerr.Is(err, ulerr.KindPeerAbortedAssociation) {
				dicomlog.Vprintf(1, "dicomulsrv(%s): peer aborted", a.Label())
				return
			}
			dicomlog.Vprintf(0, "dicomulsrv(%s): reading DIMSE command: %v", a.Label(), err)
			return
		}

		rq, ok := cmd.(*datasetdecoder.EchoRq)
		if !ok {
			dicomlog.Vprintf(0, "dicomulsrv(%s): unsupported command %v, aborting", a.Label(), cmd)
			_ = a.AbortAssociation()
			return
		}
		dicomlog.Vprintf(1, "dicomulsrv(%s): C-ECHO-RQ MessageID=%d", a.Label(), rq.ID)
		rsp := datasetdecoder.NewEchoResponse(rq, datasetdecoder.Success)
		if err := a.SendDIMSECommand(ctxID, rsp); err != nil {
			dicomlog.Vprintf(0, "dicomulsrv(%s): sending C-ECHO-RSP: %v", a.Label(), err)
			return
		}
	}
}
