// Command openvpn-webui serves the OpenVPN administration panel and manages
// its login accounts.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"openvpn-webui/internal/audit"
	"openvpn-webui/internal/auth"
	"openvpn-webui/internal/config"
	"openvpn-webui/internal/controller"
	"openvpn-webui/internal/database"
	"openvpn-webui/internal/diaglog"
	"openvpn-webui/internal/gateway"
	"openvpn-webui/internal/i18n"
	"openvpn-webui/internal/metrics"
	"openvpn-webui/internal/server"
	"openvpn-webui/internal/util"
	"openvpn-webui/internal/version"
	"openvpn-webui/internal/webview"
)

var (
	cfgFile string
	cfg     config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openvpn-webui",
		Short: "Web administration panel for an OpenVPN server.",
		Long: `openvpn-webui edits the OpenVPN server settings, manages client
certificates and shows the server logs. Every change is carried out by the
OpenVPN command line tool running with superuser rights.

Running without a subcommand starts the web server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd, cfgFile)
			if err != nil {
				return err
			}
			cfg = loaded
			i18n.Init(cfg.Language)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		Version: version.Current().Version,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is openvpn-webui.yaml in /etc/openvpn-webui, the user config dir or .)")
	flags.String("listen", "", "address to serve HTTP on")
	flags.String("listen-interface", "", "bind to the IPv4 address of this interface")
	flags.String("lang", "", `panel language ("en", "de")`)
	flags.String("database", "", "SQLite database path")
	flags.String("tool", "", "path of the OpenVPN command line tool")
	flags.String("privilege", "", `elevation method ("sudo", "pkexec", "none")`)
	flags.Int("log-lines", 0, "number of log lines shown")
	flags.Bool("diagnostics", false, "write the diagnostics log")
	flags.String("trusted-header", "", "request header carrying a user name authenticated by a reverse proxy")

	cmd.AddCommand(newServeCmd(), newAccountCmd(), newConfigCmd(), newVersionCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func newAccountCmd() *cobra.Command {
	var password string
	account := &cobra.Command{
		Use:   "account",
		Short: "Manage panel login accounts",
	}
	set := &cobra.Command{
		Use:   "set USER",
		Short: "Create an account or change its password",
		Long: `Creates USER or replaces its password. The password is read from
--password or, when that is empty, from the first line of standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := newAuthManager(db).SetPassword(args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password for %s updated\n", args[0])
			return nil
		},
	}
	set.Flags().StringVar(&password, "password", "", "new password")
	account.AddCommand(set)
	return account
}

func newConfigCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", config.SystemDir+"/openvpn-webui.yaml", "file to write")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			used := config.Used(cfgFile)
			if used == "" {
				used = "(none, built-in defaults)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), used)
		},
	}
	configCmd.AddCommand(initCmd, pathCmd)
	return configCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
		},
	}
}

func newAuthManager(db *sql.DB) *auth.Manager {
	return auth.NewManager(db, auth.Options{
		SessionTTL:    cfg.Auth.SessionTTL,
		TrustedHeader: cfg.Auth.TrustedHeader,
	})
}

func serve() error {
	log.Printf("%s starting", version.Current())

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	authManager := newAuthManager(db)
	created, err := authManager.EnsureDefaults()
	if err != nil {
		return err
	}
	if created {
		log.Printf("created default account %q; run `openvpn-webui account set %s` to change its password", auth.DefaultUser, auth.DefaultUser)
	}

	privilege, err := gateway.RequireSuperuser(cfg.Privilege)
	if err != nil {
		return err
	}

	diag := diaglog.New(cfg.Diagnostics.Path)
	if err := diag.Configure(cfg.Diagnostics.Enabled, cfg.Diagnostics.Level); err != nil {
		log.Printf("warning: diagnostics log disabled: %v", err)
		_ = diag.Configure(false, cfg.Diagnostics.Level)
	}
	defer diag.Close()

	var hub *webview.Hub
	collector := metrics.New(func() int { return hub.Len() })
	auditStore := audit.NewStore(db)

	gw, err := gateway.New(privilege, cfg.Tool, nil, collector, auditStore, diag)
	if err != nil {
		return err
	}
	diag.Infof("gateway ready: tool=%s privilege=%s", gw.Tool(), privilege.Method())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub = webview.NewHub(ctx, func(viewer string) controller.Env {
		return controller.Env{
			Gateway:   gw,
			Viewer:    viewer,
			ServerLog: cfg.Logs.Server,
			StatusLog: cfg.Logs.Status,
			LogLines:  cfg.Logs.Lines,
		}
	})

	srv, err := server.New(server.Options{
		Auth:         authManager,
		Hub:          hub,
		Audit:        auditStore,
		Metrics:      collector,
		DB:           db,
		TickInterval: cfg.Logs.FollowInterval,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	router, err := srv.Router()
	if err != nil {
		return fmt.Errorf("prepare router: %w", err)
	}

	stop := make(chan struct{})
	go srv.StartBackground(stop)

	listenAddr := util.ResolveListenAddress(cfg.Listen, cfg.ListenInterface)
	httpServer := &http.Server{
		Addr:        listenAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: /api/stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("openvpn web ui listening on %s", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("shutting down...")
	case err := <-errCh:
		close(stop)
		return fmt.Errorf("http server error: %w", err)
	}
	close(stop)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	return nil
}
