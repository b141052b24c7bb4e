package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	config "github.com/Klemen9/Belezenje-delovnega-casa-admin/configs"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/broker"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/dataset"
	handlers "github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/handlers"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/records"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/service"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/store"
	syncer "github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/sync"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/ws"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/comm"
	nats "github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/nats"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/smb"
)

const SERVICE_NAME = "admin"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
}

func main() {
	share := smb.FromEnv()

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = "."
	}
	recordStore := records.NewStore(share, backupDir)

	data := dataset.New()

	// optional reporting mirror
	var mirror syncer.Mirror
	if url := os.Getenv("POSTGRES_URL"); url != "" {
		pool, err := pgxpool.New(context.Background(), url)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatalf("Failed to migrate mirror: %v", err)
		}
		mirror = pg
		log.Printf("pg connection established successfully")
	}

	pollInterval := 30 * time.Second
	if raw := os.Getenv("POLL_INTERVAL_SEC"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Invalid POLL_INTERVAL_SEC value: %v", err)
		}
		pollInterval = time.Duration(secs) * time.Second
	}
	sy := syncer.New(share, data, mirror, pollInterval)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sy.Bootstrap(bootCtx); err != nil {
		log.Errorf("Error: bootstrap from share failed, continuing empty: %v", err)
	}
	bootCancel()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go sy.Run(runCtx)

	sockets := ws.NewWs()
	wt := service.NewWorktime(recordStore, data)

	// optional NATS relay for instant cross-instance refresh
	var b *broker.Broker
	if os.Getenv("NATS_URL") != "" {
		n, err := nats.Connect()
		if err != nil {
			log.Errorf("Error: unable to connect to NATS server %v", err)
			os.Exit(0)
		}
		defer n.Conn.Close()
		log.Printf("NATS connection established successfully %s", n.Url)

		b = broker.NewBroker(n.Conn, sy, data, instanceId)
		if err := b.Subscribe(); err != nil {
			log.Errorf("Error: unable to subscribe to queue %v", err)
			os.Exit(0)
		}
		defer b.Close()
	}

	// fan change notices and sync faults out to the UIs and the relay
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case n, ok := <-sy.Updates():
				if !ok {
					return
				}
				msg, err := comm.Envelope(comm.TypeDatasetUpdated, instanceId, comm.DatasetNotice{
					Version:   n.Version,
					Timestamp: time.Now().UTC(),
				})
				if err != nil {
					log.Errorf("Error building notice: %s", err)
					continue
				}
				sockets.Broadcast(msg)
				if b != nil && !n.Remote {
					b.PublishNotice(n.Version)
				}
			case f, ok := <-sy.Failures():
				if !ok {
					return
				}
				msg, err := comm.Envelope(comm.TypeSyncFailure, instanceId, comm.SyncFault{
					Error: f.Err.Error(),
				})
				if err != nil {
					log.Errorf("Error building fault notice: %s", err)
					continue
				}
				sockets.Broadcast(msg)
			}
		}
	}()

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	rateLimitStr := os.Getenv("RATE_LIMIT")
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value: %v", err)
	}
	r.Use(httprate.LimitByIP(rateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(data, recordStore, wt, sy, sockets)
	h.InitAuth()
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + os.Getenv("ADMIN_SERVICE_PORT"),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	runCancel()
	sy.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
