package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/config"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/netcontrol"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/workers"
	"golang.org/x/sync/errgroup"
)

// stdoutConsole echoes every console line to the terminal.
type stdoutConsole struct {
	*netcontrol.RingConsole
}

func (c stdoutConsole) Push(line string) {
	c.RingConsole.Push(line)
	fmt.Println(line)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	serverURL := flag.String("server", cfg.ServerURL, "Server URL, ws:// or udp://")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level")
	nick := flag.String("nick", cfg.Nick, "Nickname shown in the lobby")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stderr, parsedLogLevel)
	log.SetDefaultLogger(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := levels.Load(cfg.LevelsDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to load levels: %v", err))
	}

	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(context.Background())

	savePreferencesChan := make(chan *models.Preferences, 4)
	savePreferencesWorker := workers.NewSavePreferencesWorker(workers.NewSavePreferencesWorkerOptions{
		Repository:          repository,
		SavePreferencesChan: savePreferencesChan,
	})

	controller, err := netcontrol.NewController(ctx, netcontrol.NewControllerOptions{
		Catalog:         catalog,
		StartMap:        cfg.StartMap,
		Queue:           queue.NewInMemoryQueue(queue.QueueBufferSize),
		Compress:        cfg.Compress,
		Console:         stdoutConsole{netcontrol.NewRingConsole(0)},
		Seats:           cfg.Seats,
		Quorum:          cfg.VoteQuorum,
		TickInterval:    cfg.TickInterval,
		RetryInterval:   cfg.RetryInterval,
		MaxRetries:      cfg.MaxRetries,
		PeerTimeout:     cfg.PeerTimeout,
		PingInterval:    cfg.PingInterval,
		ShutdownGrace:   cfg.ShutdownGrace,
		BombFuse:        cfg.BombFuse,
		HoleRefill:      cfg.HoleRefill,
		Repository:      repository,
		Profile:         cfg.Profile,
		Nick:            cfg.Nick,
		Colors:          cfg.Colors,
		SavePreferences: savePreferencesChan,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create controller: %v", err))
	}
	if *nick != controller.Preferences().Nick {
		if err := controller.SetAvatar(*nick, controller.Preferences().Colors); err != nil {
			log.Error("Failed to set nick: %v", err)
		}
	}

	if err := controller.Join(ctx, *serverURL); err != nil {
		panic(fmt.Sprintf("Failed to join: %v", err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		controller.Start(ctx)
		return nil
	})
	g.Go(func() error {
		savePreferencesWorker.Start(ctx)
		return nil
	})
	go readCommands(controller, stop)

	if err := g.Wait(); err != nil {
		log.Error("Client stopped: %v", err)
		os.Exit(1)
	}
}

// readCommands turns stdin lines into controller calls. Lines that are not
// commands are sent as chat.
func readCommands(controller *netcontrol.Controller, stop context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			stop()
			return
		}

		err := controller.Do(func(c *netcontrol.Controller) {
			if err := runCommand(c, line); err != nil {
				c.GetNetConsole().Push("! " + err.Error())
			}
		})
		if err != nil {
			log.Error("Failed to schedule command: %v", err)
		}
	}
}

func runCommand(c *netcontrol.Controller, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/ready":
		return c.SetReady(true)
	case "/unready":
		return c.SetReady(false)
	case "/vote":
		return c.SendVoteToSkip()
	case "/leave":
		return c.Disconnect()
	case "/nick":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /nick <name>")
		}
		return c.SetAvatar(fields[1], c.Preferences().Colors)
	case "/dig":
		var x, y int
		if len(fields) != 3 {
			return fmt.Errorf("usage: /dig <x> <y>")
		}
		if _, err := fmt.Sscanf(fields[1]+" "+fields[2], "%d %d", &x, &y); err != nil {
			return err
		}
		return c.RequestDig(x, y)
	case "/status":
		c.GetNetConsole().Push(fmt.Sprintf("* %s on %s, lock %s", c.GetStatus(), c.Session().World.Map(), c.Session().Locks.State()))
		return nil
	default:
		if strings.HasPrefix(line, "/") {
			return fmt.Errorf("unknown command %s", fields[0])
		}
		return c.SendChat(line)
	}
}
