package main

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"runtime"

	"github.com/cuemby/nodeflow/pkg/discovery"
	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/secrets"
	"github.com/cuemby/nodeflow/pkg/transport"
	"github.com/cuemby/nodeflow/pkg/worker"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker-side commands",
}

var workerServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Listen for a manager connection and execute dispatched tasks",
	Long: `Serve starts a worker daemon: it listens for one manager connection,
authenticates it with a shared secret, performs the HANDSHAKE/CAPACITY
exchange, and runs whatever AtomicCmds the manager dispatches as
TASK_START messages, reporting each as TASK_DONE.`,
	RunE: runWorkerServe,
}

func init() {
	workerServeCmd.Flags().String("host", "0.0.0.0", "address to listen on")
	workerServeCmd.Flags().Int("port", 0, "port to listen on (0 picks a free port)")
	workerServeCmd.Flags().Int("threads", runtime.NumCPU(), "advertised thread capacity")
	workerServeCmd.Flags().Bool("overcommit", false, "advertise capacity for more tasks than threads")
	workerServeCmd.Flags().String("secret", "", "base64 shared secret (generated and printed if unset)")

	workerCmd.AddCommand(workerServeCmd)
}

func runWorkerServe(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("cli")

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	threads, _ := cmd.Flags().GetInt("threads")
	overcommit, _ := cmd.Flags().GetBool("overcommit")
	secretB64, _ := cmd.Flags().GetString("secret")
	discoveryDir, _ := cmd.Flags().GetString("discovery-dir")

	if secretB64 == "" {
		var err error
		secretB64, err = secrets.GenerateSharedSecret()
		if err != nil {
			return fmt.Errorf("generate shared secret: %w", err)
		}
	}
	secretRaw, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return fmt.Errorf("decode --secret: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	boundPort := ln.Addr().(*net.TCPAddr).Port

	d := worker.NewDaemon(threads, overcommit)
	srv, err := transport.NewServer(d.Accept, secretRaw)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	workerID := uuid.New().String()
	fmt.Printf("worker %s listening on %s:%d\n", workerID, host, boundPort)
	fmt.Printf("shared secret: %s\n", secretB64)

	if discoveryDir != "" {
		path, err := discovery.Advertise(discoveryDir, discovery.WorkerAd{
			ID:     workerID,
			Host:   advertiseHost(host),
			Port:   boundPort,
			Secret: secretB64,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to write discovery advertisement")
		} else {
			fmt.Printf("advertised at %s\n", path)
		}
	}

	return http.Serve(ln, srv.Handler())
}

// advertiseHost substitutes a real loopback address when serving has been
// bound to the wildcard interface, since a discovery advertisement needs
// a dialable host.
func advertiseHost(host string) string {
	if host == "0.0.0.0" || host == "" {
		return "127.0.0.1"
	}
	return host
}
