package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"parley/internal/mode"
	"parley/internal/session"
	"parley/internal/store"
	"parley/internal/types"
)

var (
	directiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	authorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// scriptFile is the YAML layout for a scripted deliberation.
type scriptFile struct {
	Goal         string              `yaml:"goal"`
	Mode         string              `yaml:"mode"`
	Participants []types.Participant `yaml:"participants"`
	Messages     []scriptMessage     `yaml:"messages"`
}

type scriptMessage struct {
	Author  string `yaml:"author"`
	Type    string `yaml:"type"`
	Content string `yaml:"content"`
}

var saveSession bool

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>",
	Short: "Run a scripted deliberation and print the engine's directives",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := loadScript(args[0])
		if err != nil {
			return err
		}

		registry, err := mode.LoadDir(cfg.ModesDir)
		if err != nil {
			return err
		}
		policy, ok := registry.Get(script.Mode)
		if !ok {
			return fmt.Errorf("unknown mode %q (available: run 'parley modes')", script.Mode)
		}

		sess, err := session.New(session.Options{
			Goal:         script.Goal,
			Policy:       policy,
			Participants: script.Participants,
			Broadcaster:  printBroadcaster{},
			Speaker:      printSpeaker{},
		})
		if err != nil {
			return err
		}

		for i, sm := range script.Messages {
			msg := types.Message{
				ID:        uuid.New().String(),
				Timestamp: time.Now(),
				AuthorID:  sm.Author,
				Type:      types.MessageType(sm.Type),
				Content:   sm.Content,
			}
			fmt.Printf("%s %s\n", authorStyle.Render(sm.Author+":"), truncate(sm.Content, 80))
			if err := sess.Handle(msg); err != nil {
				return fmt.Errorf("message %d: %w", i+1, err)
			}
		}

		progress := sess.Engine().GetProgress()
		status := sess.Tracker().Status()
		fmt.Println(summaryStyle.Render(fmt.Sprintf(
			"\nstage=%s phase=%s messages=%d proposals=%d consensus=%d/%d ready=%v",
			sess.Stage(), progress.CurrentPhaseID, progress.TotalMessages,
			progress.ProposalsCount, status.ConsensusPoints, status.ConflictPoints, status.Ready)))

		if saveSession {
			db, err := store.New(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.SaveSnapshot(sess.ID, sess.Engine().Snapshot()); err != nil {
				return err
			}
			logger.Info("session saved", zap.String("session_id", sess.ID), zap.String("path", cfg.Store.Path))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&saveSession, "save", false, "persist the session snapshot to the store")
}

func loadScript(path string) (*scriptFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var script scriptFile
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(script.Participants) == 0 {
		return nil, fmt.Errorf("script has no participants")
	}
	if script.Mode == "" {
		script.Mode = mode.DefaultPolicy().ID
	}
	return &script, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// printBroadcaster prints directives to stdout.
type printBroadcaster struct{}

func (printBroadcaster) Broadcast(msg types.Message) error {
	fmt.Println(directiveStyle.Render("[directive] " + msg.Content))
	return nil
}

// printSpeaker records force-speak requests; in a scripted run the script
// already decides who speaks.
type printSpeaker struct{}

func (printSpeaker) ForceSpeak(id string) error {
	fmt.Println(summaryStyle.Render("[floor] " + id + " asked to speak"))
	return nil
}
