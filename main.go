package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"album-publisher/publish"
	"album-publisher/render"
	"album-publisher/server"
	"album-publisher/tasks"
	"album-publisher/types"
)

var (
	configFile string
	envFile    string
	debugMode  bool
	publishAll bool
	enqueue    bool
)

var rootCmd = &cobra.Command{
	Use:   "album-publisher",
	Short: "Scheduled YouTube publishing for album videos and shorts",
	Long: `Publishes rendered album videos and shorts to YouTube on a weekly schedule,
tracks what went out, and emails a notification for every attempt.`,
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Publish everything scheduled for today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if enqueue {
			return a.enqueue(tasks.NewPublishAutoTask())
		}

		c, release, err := a.coordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		run, err := c.RunScheduled(cmd.Context())
		a.saveRunState(run)
		if err != nil {
			return fmt.Errorf("auto-publish failed: %w", err)
		}
		a.log.Info("Auto-publish complete!")
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:       "batch video|short",
	Short:     "Publish the metadata catalog in week order (first item only unless --all)",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(types.Video), string(types.Short)},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		contentType := types.ContentType(args[0])
		mode := publish.BatchTest
		if publishAll {
			mode = publish.BatchAll
		}
		if enqueue {
			return a.enqueue(tasks.NewPublishBatchTask(contentType, mode))
		}

		c, release, err := a.coordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		run, err := c.RunBatch(cmd.Context(), contentType, mode)
		a.saveRunState(run)
		if err != nil {
			return err
		}
		if mode == publish.BatchTest && len(run.Outcomes) > 0 {
			fmt.Printf("\nTest publish complete. If everything looks good, run: album-publisher batch %s --all\n", contentType)
		}
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:       "publish video|short <slug>",
	Short:     "Upload a single video or short",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(types.Video), string(types.Short)},
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType := types.ContentType(args[0])
		if !contentType.Valid() {
			return fmt.Errorf("unknown content type %q", args[0])
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		up, err := a.uploader(cmd.Context())
		if err != nil {
			return err
		}

		res, err := up.Publishers()[contentType].Publish(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next scheduled item",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		table, err := a.reconciled(cmd.Context())
		if err != nil {
			return err
		}
		loc, _ := a.cfg.Location()

		item, ok := table.NextScheduledItem(time.Now().In(loc))
		if !ok {
			fmt.Println("Nothing scheduled")
			return nil
		}
		fmt.Printf("Week %d %s: %s on %s\n", item.Week, item.Type, item.Slug, item.Date.In(loc).Format(time.RFC1123))
		return nil
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "List items due today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		table, err := a.reconciled(cmd.Context())
		if err != nil {
			return err
		}
		loc, _ := a.cfg.Location()

		due := table.DueToday(time.Now().In(loc))
		if len(due) == 0 {
			fmt.Println("No content scheduled for today")
			return nil
		}
		for _, item := range due {
			fmt.Printf("Week %d %s: %s at %s\n", item.Week, item.Type, item.Slug, item.Date.In(loc).Format(time.Kitchen))
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render video|short|story|thumbnail <slug>",
	Short: "Render an album video, short, story or thumbnail with Remotion",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		out, err := render.New(a.cfg, a.log).Run(cmd.Context(), render.Kind(args[0]), args[1])
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize YouTube access and show the connected channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		up, err := a.uploader(cmd.Context())
		if err != nil {
			return err
		}
		info, err := up.Channel(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("\nSuccessfully connected to YouTube!")
		fmt.Println("\nChannel Info:")
		fmt.Println("  Name:", info.Name)
		fmt.Println("  ID:", info.ID)
		fmt.Println("  Subscribers:", info.Subscribers)
		fmt.Println("  Videos:", info.Videos)
		return nil
	},
}

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule",
	Short: "Align uploaded videos' visibility with their metadata publish dates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if len(a.cfg.Reschedule) == 0 {
			fmt.Println("Nothing to reschedule (config.yaml reschedule list is empty)")
			return nil
		}
		up, err := a.uploader(cmd.Context())
		if err != nil {
			return err
		}

		results, err := up.Reschedule(cmd.Context(), a.cfg.Reschedule)
		for _, r := range results {
			fmt.Printf("  %s (%s)\n    Video ID: %s\n    Status: %s\n", r.Title, r.Type, r.VideoID, r.Status)
			if r.PublishAt != nil {
				fmt.Printf("    Scheduled: %s\n", *r.PublishAt)
			}
			fmt.Printf("    Studio: https://studio.youtube.com/video/%s/edit\n\n", r.VideoID)
		}

		path := filepath.Join(a.cfg.Paths.Reports, a.cfg.Publish.RescheduleLog)
		if werr := publish.WriteReport(path, results); werr != nil {
			return werr
		}
		a.log.Infof("Full report saved to: %s", path)
		return err
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify [success|error|info] [subject] [message]",
	Short: "Send a test notification",
	Args:  cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := testNotification(args)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		return a.notifier().Notify(cmd.Context(), n)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the task worker that executes queued publish runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		c, release, err := a.coordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer release()

		srv := tasks.NewServer(a.secrets.RedisAddr)
		mux := tasks.NewServeMux(tasks.NewTaskHandler(c, a.log))

		a.log.Infof("Worker starting (redis %s)", a.secrets.RedisAddr)
		if err := srv.Run(mux); err != nil {
			return fmt.Errorf("could not run worker: %w", err)
		}
		return nil
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Enqueue the daily publish run on the configured cron schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		loc, err := a.cfg.Location()
		if err != nil {
			return err
		}

		scheduler := tasks.NewScheduler(a.secrets.RedisAddr, loc)
		if _, err := tasks.RegisterDaily(scheduler, a.cfg.Scheduler.Cron); err != nil {
			return err
		}

		a.log.Infof("Scheduler starting (%s, %s)", a.cfg.Scheduler.Cron, loc)
		if err := scheduler.Run(); err != nil {
			return fmt.Errorf("could not run scheduler: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve read-only schedule and tracking status over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		table, err := a.loadSchedule()
		if err != nil {
			return err
		}
		store, release, err := a.store(cmd.Context())
		if err != nil {
			return err
		}
		defer release()
		loc, _ := a.cfg.Location()

		return server.New(table, store, loc, a.log).ListenAndServe(cmd.Context(), a.cfg.Server.Address)
	},
}

// testNotification builds the notify command's message from its arguments
func testNotification(args []string) (types.Notification, error) {
	n := types.Notification{
		Type:    types.NotifyInfo,
		Subject: "Test Notification",
		Message: "This is a test message from Pravos automation",
	}
	if len(args) > 0 {
		n.Type = types.NotificationType(args[0])
		if !n.Type.Valid() {
			return n, fmt.Errorf("unknown notification type %q (want success, error or info)", args[0])
		}
	}
	if len(args) > 1 {
		n.Subject = args[1]
	}
	if len(args) > 2 {
		n.Message = args[2]
	}
	return n, nil
}

// enqueue hands a task to the worker instead of running it in-process
func (a *app) enqueue(task *asynq.Task, err error) error {
	if err != nil {
		return err
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: a.secrets.RedisAddr})
	defer client.Close()

	info, err := tasks.Enqueue(client, task)
	if err != nil {
		return err
	}
	a.log.WithField("task_id", info.ID).Infof("Enqueued %s", task.Type())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Path to .env file (default .env)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	autoCmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the run for the worker instead of running it here")
	batchCmd.Flags().BoolVar(&publishAll, "all", false, "Publish every item instead of only the first")
	batchCmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the run for the worker instead of running it here")

	rootCmd.AddCommand(autoCmd, batchCmd, publishCmd, nextCmd, dueCmd, renderCmd, authCmd,
		rescheduleCmd, notifyCmd, workerCmd, schedulerCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
