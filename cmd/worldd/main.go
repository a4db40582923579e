package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/worldcore/internal/config"
	"github.com/l1jgo/worldcore/internal/core/event"
	coresys "github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/data"
	"github.com/l1jgo/worldcore/internal/mail"
	"github.com/l1jgo/worldcore/internal/persist"
	"github.com/l1jgo/worldcore/internal/persist/pg"
	"github.com/l1jgo/worldcore/internal/scripting"
	"github.com/l1jgo/worldcore/internal/session"
	"github.com/l1jgo/worldcore/internal/system"
	"github.com/l1jgo/worldcore/internal/world"
	"github.com/l1jgo/worldcore/internal/zone"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             worldcore  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        持久世界核心 · Go MUD 伺服器       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s\n\n", serverName)
}

// displayWidth counts CJK characters as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		if r > 0x7F {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/worldcore.toml"
	if p := os.Getenv("WORLDCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Optional PostgreSQL mirror
	var mirror *system.Mirror
	if cfg.Database.DSN != "" {
		printSection("資料庫")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := pg.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := pg.RunMigrations(ctx, db.Pool); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		cancel()
		printOK("資料庫遷移完成")
		fmt.Println()
		mirror = system.NewMirror(db)
	}

	// 4. Boot the world
	printSection("世界資料")
	behaviors, err := data.LoadBehaviorTable(cfg.World.BehaviorTable)
	if err != nil {
		return err
	}
	w, err := world.Boot(os.DirFS(cfg.World.Dir), world.BootOptions{
		MortalStart: cfg.World.MortalStartRoom,
		ImmortStart: cfg.World.ImmortStartRoom,
		FrozenStart: cfg.World.FrozenStartRoom,
		Behaviors:   behaviors,
	}, log)
	if err != nil {
		return fmt.Errorf("boot world: %w", err)
	}
	rooms, zones, mobs, objs := w.Counts()
	printStat("房間", rooms)
	printStat("區域", zones)
	printStat("怪物原型", mobs)
	printStat("物品原型", objs)
	printStat("行為標籤", behaviors.Count())
	fmt.Println()

	bus := event.NewBus()
	sessions := session.NewRegistry(w)

	printSection("區域重置")
	zoneEngine := zone.NewEngine(w, sessions, bus, cfg.World.ImmortalLevel, log)
	zoneEngine.ResetAll()
	printStat("怪物", w.Chars.Len())
	printStat("物品", w.Objs.Len())
	fmt.Println()

	// 5. Player files, rent and mail
	printSection("玩家資料")
	players, err := persist.OpenPlayerFile(cfg.Player.File, log)
	if err != nil {
		return fmt.Errorf("player file: %w", err)
	}
	printStat("玩家", players.Len())

	rent := persist.NewRentStore(cfg.Rent, log)
	cleaned, err := rent.Clean()
	if err != nil {
		log.Error("清除租用檔失敗", zap.Error(err))
	}
	printStat("過期租用檔", cleaned)

	store, err := mail.Open(cfg.Mail.File, cfg.Mail.MaxSize, log)
	if err != nil {
		log.Error("信件系統停用", zap.Error(err))
	}
	printStat("收件人", len(store.Recipients()))
	postmaster := mail.NewPostmaster(store, players, cfg.Mail, bus, log)
	fmt.Println()

	// 6. Behaviour scripts
	printSection("腳本")
	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()
	printStat("行為腳本", len(luaEngine.Behaviors()))
	for _, tags := range []map[int32]string{behaviors.Mobiles, behaviors.Objects, behaviors.Rooms} {
		for vnum, tag := range tags {
			if !luaEngine.HasBehavior(tag) {
				log.Warn("行為標籤沒有對應腳本", zap.Int32("vnum", vnum), zap.String("tag", tag))
			}
		}
	}
	fmt.Println()

	event.Subscribe(bus, func(e event.ZoneReset) {
		luaEngine.OnZoneReset(e.Vnum, w.Zones[e.Zone].Name)
	})
	event.Subscribe(bus, func(e event.RentLoaded) {
		s := sessions.ByName(e.Name)
		if s == nil {
			return
		}
		if waiting, err := postmaster.Check(w, s.Char); err == nil && waiting {
			log.Info("玩家有未讀信件", zap.String("name", e.Name))
		}
	})
	event.Subscribe(bus, func(e event.MailDelivered) {
		name, ok := players.NameByID(e.To)
		if !ok {
			return
		}
		if s := sessions.ByName(name); s != nil && s.State == session.StatePlaying {
			log.Debug("收件人在線上", zap.String("name", name))
		}
	})

	// 7. Systems
	ledger := &system.Ledger{}
	life := system.NewLifecycle(w, players, rent, sessions, ledger, bus, cfg.World.ImmortalLevel, log)

	var saveEvery uint64
	if cfg.Player.AutoSave {
		saveEvery = cfg.Pulses(cfg.Player.AutoSaveTime)
	}
	persistSys := system.NewPersistenceSystem(w, players, rent, sessions, ledger, mirror, log, saveEvery)

	runner := coresys.NewRunner()
	runner.Register(system.NewZoneSystem(zoneEngine, cfg.Pulses(cfg.Zone.AgeInterval), cfg.Pulses(cfg.Zone.CheckInterval)))
	runner.Register(system.NewDispatchSystem(bus))
	runner.Register(persistSys)
	runner.Register(system.NewIdleSystem(sessions, life, int(cfg.Pulses(cfg.Player.IdleRentTime)), log))

	// 8. Pulse loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Server.Pulse)
	defer ticker.Stop()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("世界迴圈啟動 (pulse: %s)", cfg.Server.Pulse))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick()
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			n := persistSys.SaveAllPlayers()
			log.Info("伺服器已停止", zap.Int("玩家數", n))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
