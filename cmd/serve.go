package cmd

import (
	"sync"

	"github.com/gurneyalex/cubicweb-condor/internal/config"
	"github.com/gurneyalex/cubicweb-condor/internal/utils"
	"github.com/gurneyalex/cubicweb-condor/internal/web"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveNoReconcile bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the condor status page and API",
	Long: `Start the web interface.

Pages:
  /                     queue, removal form and pool status (refreshes every 91s)
  /do_condor_remove     removal controller (POST condor_job_id)
  /api/v1/queue         job ids in the queue (JSON)
  /api/v1/executions    tracked executions (JSON, ?state= filter)
  /api/v1/reconcile     suspicious executions (GET), run one pass (POST)

The reconciler also runs in the background every reconcile_interval unless
--no-reconcile is given. Every pass counts as one observation: two passes on
an empty queue fail all queued and running executions. A POST is therefore
refused with 429 until half of reconcile_interval has elapsed since the
previous pass, whether that pass came from the API or the background loop. Set web.username and web.password_hash to require
HTTP basic authentication; "condorweb config hash-password" prints a hash.`,
	Example: `  condorweb serve
  condorweb serve --listen 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := config.Global.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		client := newClient()
		st := openStore()
		defer st.Close()
		rec := newReconciler(client, st)

		if config.Global.Web.PasswordHash == "" {
			utils.PrintWarning("web.password_hash is not set: the web interface is not protected")
		}

		srv := web.NewServer(web.Options{
			Condor:       client,
			Executions:   st,
			Reconciler:   rec,
			Log:          utils.Console{},
			Username:     config.Global.Web.Username,
			PasswordHash: config.Global.Web.PasswordHash,
			RemoveRate:   config.Global.Web.RemoveRate,

			ReconcileSpacing: config.Global.ReconcileInterval / 2,
		})

		ctx, cancel := signalContext()
		defer cancel()

		var wg sync.WaitGroup
		if !serveNoReconcile {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec.Loop(ctx, config.Global.ReconcileInterval)
			}()
		}

		err := srv.ListenAndServe(ctx, addr)
		cancel()
		wg.Wait()
		return err
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "listen", "l", "", "Listen address (default: listen_addr)")
	serveCmd.Flags().BoolVar(&serveNoReconcile, "no-reconcile", false, "Do not run the reconciler in the background")
	rootCmd.AddCommand(serveCmd)
}
