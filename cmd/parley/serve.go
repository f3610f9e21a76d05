package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parley/internal/mode"
	"parley/internal/session"
	"parley/internal/transport"
	"parley/internal/types"
)

var (
	serveMode string
	serveGoal string
	agentIDs  []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a live session: POST messages in, watch directives over websocket",
	Long: `Starts one deliberation session behind an HTTP endpoint.

POST /messages           submit a participant message (JSON)
GET  /watch              websocket stream of engine directives
GET  /status             current progress and readiness`,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := mode.LoadDir(cfg.ModesDir)
		if err != nil {
			return err
		}
		watcher, err := mode.NewWatcher(cfg.ModesDir, registry)
		if err == nil {
			defer watcher.Close()
		}

		policy, ok := registry.Get(serveMode)
		if !ok {
			return fmt.Errorf("unknown mode %q", serveMode)
		}

		participants := make([]types.Participant, 0, len(agentIDs))
		for _, id := range agentIDs {
			participants = append(participants, types.Participant{ID: id, DisplayName: id})
		}

		var sess *session.Session
		bus := transport.NewBus(func(msg types.Message) error {
			if msg.Metadata["tick"] == "1" {
				return sess.Tick()
			}
			return sess.Handle(msg)
		}, 0)

		sess, err = session.New(session.Options{
			Goal:         serveGoal,
			Policy:       policy,
			Participants: participants,
			Broadcaster:  bus,
		})
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/watch", transport.NewObserver(bus))
		mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var msg types.Message
			if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if msg.ID == "" {
				msg.ID = uuid.New().String()
			}
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			if err := bus.Submit(msg); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			progress := sess.Engine().GetProgress()
			status := sess.Tracker().Status()
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"session_id":      sess.ID,
				"stage":           sess.Stage(),
				"phase":           progress.CurrentPhaseID,
				"total_messages":  progress.TotalMessages,
				"wireframe_phase": sess.WireframePhase(),
				"ready":           status.Ready,
				"recommendation":  status.Recommendation,
			})
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := &http.Server{Addr: cfg.Observer.Addr, Handler: mux}
		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			err := bus.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		g.Go(func() error {
			logger.Info("serving session", zap.String("addr", cfg.Observer.Addr), zap.String("mode", policy.ID))
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					return server.Shutdown(shutdownCtx)
				case <-ticker.C:
					// Ticks go through the bus so the session stays
					// single-threaded.
					_ = bus.Submit(types.Message{
						ID:        uuid.New().String(),
						Timestamp: time.Now(),
						AuthorID:  types.AuthorSystem,
						Type:      types.MsgSystem,
						Content:   "",
						Metadata:  map[string]string{"tick": "1"},
					})
				}
			}
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", mode.DefaultPolicy().ID, "deliberation mode id")
	serveCmd.Flags().StringVar(&serveGoal, "goal", "", "session goal")
	serveCmd.Flags().StringSliceVar(&agentIDs, "agents", []string{"ada", "lin", "max"}, "participant agent ids")
}
