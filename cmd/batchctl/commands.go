package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediaforge/batchctl/internal/api"
	"github.com/mediaforge/batchctl/internal/config"
	"github.com/mediaforge/batchctl/internal/domain"
	"github.com/mediaforge/batchctl/internal/manifest"
	"github.com/mediaforge/batchctl/internal/mission"
	"github.com/mediaforge/batchctl/internal/notify"
	"github.com/mediaforge/batchctl/internal/observer"
	"github.com/mediaforge/batchctl/internal/schedule"
	"github.com/mediaforge/batchctl/internal/updater"
	"github.com/mediaforge/batchctl/tui"
)

var (
	listPage    int
	listStatus  string
	listFollow  bool
	showFollow  bool
	skipConfirm bool
	downloadDir string
)

func init() {
	// list command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List missions",
		RunE:  runList,
	}
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status")
	listCmd.Flags().BoolVar(&listFollow, "follow", false, "keep polling and reprint each cycle")
	rootCmd.AddCommand(listCmd)

	// show command
	showCmd := &cobra.Command{
		Use:   "show MISSION",
		Short: "Show a mission and its items",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	showCmd.Flags().BoolVar(&showFollow, "follow", false, "keep polling until the mission reaches a terminal state")
	rootCmd.AddCommand(showCmd)

	// cancel command
	cancelCmd := &cobra.Command{
		Use:   "cancel MISSION",
		Short: "Cancel a mission's queued items",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	}
	cancelCmd.Flags().BoolVar(&skipConfirm, "yes", false, "skip confirmation prompt")
	rootCmd.AddCommand(cancelCmd)

	// retry command
	retryCmd := &cobra.Command{
		Use:   "retry MISSION",
		Short: "Re-queue a mission's failed items",
		Args:  cobra.ExactArgs(1),
		RunE:  runRetry,
	}
	rootCmd.AddCommand(retryCmd)

	// delete command
	deleteCmd := &cobra.Command{
		Use:   "delete MISSION",
		Short: "Delete a mission (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	deleteCmd.Flags().BoolVar(&skipConfirm, "yes", false, "skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)

	// download command
	downloadCmd := &cobra.Command{
		Use:   "download MISSION",
		Short: "Download a mission's result archive",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	downloadCmd.Flags().StringVar(&downloadDir, "dir", "", "destination directory (defaults to config download_dir)")
	rootCmd.AddCommand(downloadCmd)

	// upload command
	uploadCmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload reference images",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}
	rootCmd.AddCommand(uploadCmd)

	// models command
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List available models and their capabilities",
		RunE:  runModels,
	}
	rootCmd.AddCommand(modelsCmd)

	// platforms command
	platformsCmd := &cobra.Command{
		Use:   "platforms",
		Short: "List execution platforms",
		RunE:  runPlatforms,
	}
	rootCmd.AddCommand(platformsCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the mission dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)

	// watch command
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox directory and submit dropped manifests",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	// scheduler command
	schedulerCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run recurring scheduled submissions",
		RunE:  runScheduler,
	}
	rootCmd.AddCommand(schedulerCmd)

	// update command
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update batchctl to the latest release",
		RunE:  runUpdate,
	}
	rootCmd.AddCommand(updateCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("batchctl", version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if os.Getenv("BATCHCTL_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

func newClient(cfg *config.Config, log zerolog.Logger) *api.Client {
	return api.New(cfg.Backend.BaseURL, cfg.Backend.APIKey, log)
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func newManager(cfg *config.Config, log zerolog.Logger, confirm mission.ConfirmFunc) *mission.Manager {
	return mission.NewManager(newClient(cfg, log), mission.Options{
		PageSize: cfg.Client.PageSize,
		Confirm:  confirm,
		Notifier: newNotifier(cfg),
		Logger:   log,
	})
}

// promptConfirm asks on stdin unless --yes was given
func promptConfirm(action, missionID string) bool {
	if skipConfirm {
		return true
	}
	fmt.Printf("%s mission %s? [y/N] ", action, missionID)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// follow drives refresh through the mission poller until the context is
// cancelled or the user interrupts. A failed poll is logged by the poller
// and the last printed output stands; polling continues.
func follow(ctx context.Context, interval time.Duration, log zerolog.Logger, refresh func(context.Context) error) {
	p := mission.NewPoller(interval, refresh, log)
	p.Start(ctx)
	defer p.Stop()
	waitForInterrupt(ctx)
}

func renderMissionList(page *domain.MissionPage) {
	if len(page.Items) == 0 {
		fmt.Println("No missions on this page")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPROGRESS\tCREATED")
	for _, m := range page.Items {
		progress := fmt.Sprintf("%d/%d", m.CompletedCount, m.TotalCount)
		if m.FailedCount > 0 {
			progress += fmt.Sprintf(" (%d failed)", m.FailedCount)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.TaskType, m.Status, progress, humanize.Time(m.CreatedAt))
	}
	w.Flush()

	fmt.Printf("\nPage %d, %d missions total\n", page.Page, page.Total)
}

func renderMissionDetail(detail *mission.Detail) {
	m := detail.Mission
	fmt.Printf("%s (%s)\n", m.Name, m.ID)
	fmt.Printf("  type: %s  status: %s  progress: %d/%d done, %d failed\n",
		m.TaskType, m.Status, m.CompletedCount, m.TotalCount, m.FailedCount)
	if m.Description != "" {
		fmt.Printf("  %s\n", m.Description)
	}
	if m.ScheduledTime != nil {
		fmt.Printf("  scheduled: %s\n", m.ScheduledTime.Format(time.RFC3339))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tPROMPT\tRESULT")
	now := time.Now()
	for _, item := range detail.Items {
		result := item.ResultURL
		if item.Status == domain.ItemFailed && item.ErrorMessage != "" {
			result = item.ErrorMessage
		}
		if item.Retryable() {
			result = fmt.Sprintf("retry %d in %s", item.RetryCount, domain.Countdown(*item.NextRetryAt, now))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", item.ItemIndex, item.Status, item.InputParams.Prompt, result)
	}
	w.Flush()
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	mgr := newManager(cfg, log, nil)
	mgr.SetListView(listPage, listStatus)

	refresh := func(ctx context.Context) error {
		page, err := mgr.RefreshList(ctx, listPage, listStatus)
		if err != nil {
			return err
		}
		renderMissionList(page)
		return nil
	}

	if !listFollow {
		return refresh(cmd.Context())
	}

	follow(cmd.Context(), cfg.Client.PollInterval, log, refresh)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	mgr := newManager(cfg, log, nil)
	mgr.SetDetailView(args[0])

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	refresh := func(ctx context.Context) error {
		detail, err := mgr.RefreshDetail(ctx, args[0])
		if err != nil {
			return err
		}
		renderMissionDetail(detail)
		if showFollow && detail.Mission.Status.Terminal() {
			cancel()
		}
		return nil
	}

	if !showFollow {
		return refresh(ctx)
	}

	follow(ctx, cfg.Client.PollInterval, log, refresh)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr := newManager(cfg, newLogger(), promptConfirm)
	n, err := mgr.Cancel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Cancelled %d queued items\n", n)
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr := newManager(cfg, newLogger(), nil)
	n, err := mgr.Retry(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("Nothing to retry")
		return nil
	}
	fmt.Printf("Re-queued %d failed items\n", n)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr := newManager(cfg, newLogger(), promptConfirm)
	if err := mgr.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Println("Mission deleted")
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	client := newClient(cfg, log)

	url, err := client.DownloadURL(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	dir := downloadDir
	if dir == "" {
		dir = cfg.Client.DownloadDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	dest, err := client.FetchFile(cmd.Context(), url, dir)
	if err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", dest)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newClient(cfg, newLogger())
	uploads, err := client.UploadAll(cmd.Context(), args)

	// Partial failures still report the files that made it.
	for _, u := range uploads {
		fmt.Printf("%s\t%s\n", u.Name, u.URL)
	}
	return err
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newClient(cfg, newLogger())
	models, err := client.ListModels(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tTASK TYPES\tASPECT RATIOS\tDURATIONS")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.Platform,
			strings.Join(m.TaskTypes, ","),
			strings.Join(m.AspectRatios, ","),
			strings.Join(m.Durations, ","))
	}
	w.Flush()
	return nil
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := newClient(cfg, newLogger())
	platforms, err := client.ListPlatforms(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tENABLED")
	for _, p := range platforms {
		fmt.Fprintf(w, "%s\t%s\t%t\n", p.ID, p.Name, p.Enabled)
	}
	w.Flush()
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The TUI confirms through its own overlay.
	mgr := newManager(cfg, newLogger(), mission.ConfirmAll)
	model := tui.NewModel(mgr, cfg.Client.PollInterval)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	mgr := newManager(cfg, log, nil)

	submit := func(ctx context.Context, path string) error {
		m, err := manifest.Load(path)
		if err != nil {
			return err
		}
		spec, err := m.SubmitSpec()
		if err != nil {
			return err
		}
		result, err := mgr.Submit(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Printf("Submitted %s as mission %s\n", path, result.MissionID)
		return nil
	}

	watcher, err := observer.NewInboxWatcher(cfg.Watch.Dir, submit, log)
	if err != nil {
		return err
	}
	if cfg.Watch.Debounce > 0 {
		watcher.SetDebounce(cfg.Watch.Debounce)
	}

	if err := watcher.Start(cmd.Context()); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Printf("Watching %s for manifests (ctrl+c to stop)\n", cfg.Watch.Dir)
	waitForInterrupt(cmd.Context())
	return nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger()
	mgr := newManager(cfg, log, nil)

	file, err := schedule.LoadFile(cfg.Client.SchedulePath)
	if err != nil {
		return err
	}
	if len(file.Entries) == 0 {
		fmt.Printf("No schedules in %s\n", cfg.Client.SchedulePath)
		return nil
	}

	sched, err := schedule.NewScheduler(file.Entries, log)
	if err != nil {
		return err
	}

	run := func(e schedule.Entry) error {
		m, err := manifest.Load(e.Manifest)
		if err != nil {
			return err
		}
		spec, err := m.SubmitSpec()
		if err != nil {
			return err
		}
		result, err := mgr.Submit(context.Background(), spec)
		if err != nil {
			return err
		}
		log.Info().Str("schedule", e.Name).Str("mission", result.MissionID).Msg("scheduled mission submitted")
		return nil
	}

	for _, name := range sched.Entries() {
		fmt.Printf("%s: next run %s\n", name, sched.NextRun(name).Format(time.RFC3339))
	}

	go sched.Start(run)
	defer sched.Stop()

	fmt.Println("Scheduler running (ctrl+c to stop)")
	waitForInterrupt(cmd.Context())
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	u := updater.New()

	release, err := u.Latest(cmd.Context())
	if err != nil {
		return err
	}

	if !updater.NeedsUpdate(version, release.TagName) {
		fmt.Printf("Already up to date (%s)\n", version)
		return nil
	}

	asset, err := release.PlatformAsset()
	if err != nil {
		return err
	}

	fmt.Printf("Updating %s -> %s\n", version, release.TagName)
	if err := u.Apply(cmd.Context(), asset); err != nil {
		return err
	}
	fmt.Println("Updated. Restart batchctl to use the new version.")
	return nil
}

func waitForInterrupt(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
}
