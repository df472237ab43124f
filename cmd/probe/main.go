// Command probe connects to a running bridge and prints one line per
// received frame. With -status it prints the bridge counters instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"position-bridge/internal/client"
	"position-bridge/internal/logger"
	"position-bridge/internal/status"
	"position-bridge/internal/wire"

	"github.com/joho/godotenv"
)

const reconnectDelay = 5 * time.Second

func main() {
	addr := flag.String("addr", "127.0.0.1:8888", "bridge address")
	statusAddr := flag.String("status", "", "print the status of the bridge at this HTTP address and exit")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *statusAddr != "" {
		st, err := status.NewClient(*statusAddr).Stats(ctx)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("state=%s remote=%s cycles=%d frames=%d accepts=%d send_failures=%d last_bytes=%d\n",
			st.State, st.Remote, st.Cycles, st.Frames, st.Accepts, st.SendFailures, st.LastBytes)
		return
	}

	for {
		err := consume(ctx, *addr, os.Stdout)
		if ctx.Err() != nil {
			return
		}
		logger.Warn(ctx, "Stream ended, reconnecting", "addr", *addr, "error", err, "delay", reconnectDelay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consume prints frames until the stream fails.
func consume(ctx context.Context, addr string, out io.Writer) error {
	c, err := client.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Info(ctx, "Connected to bridge", "addr", c.RemoteAddr())

	for {
		m, n, err := c.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("closed by bridge")
			}
			return err
		}
		fmt.Fprintln(out, summary(m, n))
	}
}

func summary(m *wire.Message, n int) string {
	return fmt.Sprintf("%s login=%d balance=%s equity=%s positions=%d orders=%d bytes=%d",
		time.Unix(m.Timestamp, 0).UTC().Format(time.RFC3339),
		m.AccountInfo.Login,
		m.AccountInfo.Balance.StringFixed(2),
		m.AccountInfo.Equity.StringFixed(2),
		len(m.Positions),
		len(m.Orders),
		n)
}
