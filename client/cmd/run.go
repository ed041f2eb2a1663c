package cmd

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caesay/osu/client/internal/updater"
	"github.com/caesay/osu/client/internal/updater/releases"
	"github.com/caesay/osu/util"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "runs the client in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient(cmd.Context())
	},
}

func runClient(ctx context.Context) error {
	if err := util.InitLog(logLevel, logFile); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	SetupCloseHandler(ctx, cancel)

	source := releases.NewSource(cfg.ReleasesURL, cfg.StagingDir)
	manager := updater.NewManager(updater.Config{
		CheckInterval: cfg.interval(),
		// A staged update quits the client; the installer relaunches it.
		ExitFn: cancel,
	}, source, logSink{}, updater.GateFunc(gameplayActive))

	manager.Start(ctx)
	defer manager.Stop()

	log.Infof("client started, checking %s for updates", cfg.ReleasesURL)
	<-ctx.Done()
	return nil
}

// gameplayActive reports whether an interactive session would be disrupted by
// an update check. The headless client has none.
func gameplayActive() bool {
	return false
}

// logSink surfaces update notifications in the log for the headless client.
// The desktop shell replaces it with the in-game notification overlay.
type logSink struct{}

func (logSink) Post(n *updater.Notification) {
	log.Infof("update notification %s posted: %s", n.ID(), n.State())
	n.OnChange(func(state updater.NotificationState, progress float64) {
		log.Infof("update notification %s: %s %.0f%%", n.ID(), state, progress*100)
	})
}
