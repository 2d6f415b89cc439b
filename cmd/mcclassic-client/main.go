package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	classic "github.com/balookrd/mcclassic"
	"go.uber.org/zap"
)

type consoleHandler struct {
	ss *classic.ServerSession
}

func (h *consoleHandler) WorldInfo(name, motd string, operator bool) {
	fmt.Printf("connected to %q: %s\n", name, motd)
}
func (h *consoleHandler) SetBlock(x, y, z uint16, block uint8) {}
func (h *consoleHandler) AddEntity(number uint8, name string, loc classic.Location, skin string) {
	fmt.Printf("* %s joined\n", name)
}
func (h *consoleHandler) MoveEntity(uint8, classic.Location)                       {}
func (h *consoleHandler) ShiftEntity(uint8, int8, int8, int8, uint8, uint8)        {}
func (h *consoleHandler) RemoveEntity(uint8)                                       {}
func (h *consoleHandler) SendLevel(spawn classic.Position, data []byte) {
	fmt.Printf("level received: %d bytes, spawn %+v\n", len(data), spawn)
}
func (h *consoleHandler) SendMessage(message string) { fmt.Println(message) }
func (h *consoleHandler) Kick(message string)        { fmt.Printf("kicked: %s\n", message) }
func (h *consoleHandler) SetBlockPermission(uint8, bool, bool)             {}
func (h *consoleHandler) SetColorCode(uint8, uint8, uint8, uint8, uint8)   {}
func (h *consoleHandler) AddPlayer(int16, string, string, string, uint8)   {}
func (h *consoleHandler) RemovePlayer(int16)                               {}
func (h *consoleHandler) HoldThis(uint8, bool)                             {}
func (h *consoleHandler) Disconnect()                                      { fmt.Println("disconnected") }

func main() {
	var addr, username, password string
	flag.StringVar(&addr, "addr", "127.0.0.1:25565", "server address")
	flag.StringVar(&username, "user", "guest", "username")
	flag.StringVar(&password, "pass", "", "mppass token")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ss, err := classic.Connect(ctx, addr, username, password, func(s *classic.ServerSession) classic.ServerSessionHandler {
		return &consoleHandler{ss: s}
	}, classic.WithServerLogger(logger.Sugar()))
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	go ss.Run()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		ss.SubmitMessage(scanner.Text())
	}
}
